package notify

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/target/specops-api/internal/domain/model"
	"github.com/target/specops-api/internal/events"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("notify").
	Option("missingkey=error").
	Funcs(template.FuncMap{
		"deref":    deref,
		"greeting": greeting,
		"percent":  percent,
		"seconds":  seconds,
	}).
	ParseFS(templateFS, "templates/*.tmpl"))

func deref(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func greeting(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}

// percent renders a success rate. The backend reports it as a fraction in [0, 1].
func percent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "s"
}

// view is the data passed to every template.
type view struct {
	Event          any
	Action         string
	DashboardURL   string
	ArtifactsCount int
}

// draft is a rendered message before a recipient is resolved.
type draft struct {
	role      model.MessageRole
	recipient string
	subject   string
	body      string
}

func render(name string, v view) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".subject", v); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	subject = strings.TrimSpace(buf.String())

	buf.Reset()
	bodyName := name + ".body"
	if strings.HasPrefix(name, "specification_") {
		bodyName = "specification.body"
	}
	if err := templates.ExecuteTemplate(&buf, bodyName, v); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return subject, strings.TrimLeft(buf.String(), "\n"), nil
}

// compose renders the messages for ev. Recipients are resolved from the payload
// first, then from the configured defaults.
func (d *Dispatcher) compose(ev events.Event) ([]draft, error) {
	one := func(name string, v view, recipient string) ([]draft, error) {
		subject, body, err := render(name, v)
		if err != nil {
			return nil, err
		}
		return []draft{{role: model.RolePrimary, recipient: d.recipientFor(recipient), subject: subject, body: body}}, nil
	}

	switch e := ev.(type) {
	case *events.SpecificationChanged:
		name, action := "specification_updated", "updated"
		if e.Meta().EventType == model.EventCreated {
			name, action = "specification_created", "created"
		}
		return one(name, view{Event: e, Action: action, DashboardURL: d.dashboardURL}, e.UserEmail)

	case *events.ValidationCompleted:
		if e.ErrorMessage != "" {
			failed := &events.ValidationFailed{
				ValidationRunID:      e.ValidationRunID,
				SpecificationID:      e.SpecificationID,
				ErrorMessage:         e.ErrorMessage,
				SpecificationName:    e.SpecificationName,
				ValidationStatistics: e.ValidationStatistics,
				UserName:             e.UserName,
			}
			return one("validation_failed", view{Event: failed, DashboardURL: d.dashboardURL}, e.UserEmail)
		}
		return one("validation_completed", view{Event: e, DashboardURL: d.dashboardURL}, e.UserEmail)

	case *events.ValidationFailed:
		return one("validation_failed", view{Event: e, DashboardURL: d.dashboardURL}, e.UserEmail)

	case *events.HARProcessingCompleted:
		if e.ErrorMessage != "" {
			failed := &events.HARProcessingFailed{
				UploadID:     e.UploadID,
				ErrorMessage: e.ErrorMessage,
				FileName:     e.FileName,
				Statistics:   e.Statistics,
				UserName:     e.UserName,
			}
			return one("har_processing_failed", view{Event: failed, DashboardURL: d.dashboardURL}, e.UserEmail)
		}
		return one("har_processing_completed", view{
			Event:          e,
			DashboardURL:   d.dashboardURL,
			ArtifactsCount: e.ArtifactsSummary.Count(),
		}, e.UserEmail)

	case *events.HARProcessingFailed:
		return one("har_processing_failed", view{Event: e, DashboardURL: d.dashboardURL}, e.UserEmail)

	case *events.HARReviewRequested:
		v := view{Event: e, DashboardURL: d.dashboardURL, ArtifactsCount: e.ArtifactsSummary.Count()}
		reviewSubject, reviewBody, err := render("har_review_request", v)
		if err != nil {
			return nil, err
		}
		confirmSubject, confirmBody, err := render("har_review_confirmation", v)
		if err != nil {
			return nil, err
		}
		return []draft{
			{role: model.RoleReviewer, recipient: d.reviewer, subject: reviewSubject, body: reviewBody},
			{role: model.RoleSubmitter, recipient: d.recipientFor(e.UserEmail), subject: confirmSubject, body: confirmBody},
		}, nil

	default:
		return nil, fmt.Errorf("no template for event %T", ev)
	}
}

func (d *Dispatcher) recipientFor(payloadEmail string) string {
	if e := strings.TrimSpace(payloadEmail); e != "" {
		return e
	}
	return d.defaultRecipient
}
