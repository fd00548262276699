package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func newPayload(t model.EventType) Event {
	switch t {
	case model.EventCreated, model.EventUpdated:
		return &SpecificationChanged{}
	case model.EventValidationCompleted:
		return &ValidationCompleted{}
	case model.EventValidationFailed:
		return &ValidationFailed{}
	case model.EventHARProcessingCompleted:
		return &HARProcessingCompleted{}
	case model.EventHARProcessingFailed:
		return &HARProcessingFailed{}
	case model.EventHARReviewRequested:
		return &HARReviewRequested{}
	default:
		return nil
	}
}

// Decode resolves env into its typed event. Unknown event types fail with an
// unroutable_event error; missing or invalid payload fields fail with a
// malformed_payload error naming all of them.
func Decode(env model.Envelope) (Event, error) {
	ev := newPayload(env.EventType)
	if ev == nil {
		return nil, apperrors.UnroutableEvent(string(env.EventType))
	}

	raw := bytes.TrimSpace(env.Payload)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, ev); err != nil {
			return nil, decodeError(env.EventType, err)
		}
	}

	if err := validate.Struct(ev); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "validate payload")
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		sort.Strings(fields)
		return nil, apperrors.MalformedPayload(string(env.EventType), fields)
	}

	setMeta(ev, Meta{
		EventType:     env.EventType,
		CorrelationID: env.CorrelationID,
		UserID:        env.UserID,
		Timestamp:     env.Timestamp,
	})
	return ev, nil
}

func decodeError(t model.EventType, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		malformed := apperrors.MalformedPayload(string(t), []string{typeErr.Field})
		malformed.Cause = err
		return malformed
	}
	malformed := apperrors.MalformedPayload(string(t), []string{"payload"})
	malformed.Cause = err
	return malformed
}

func setMeta(ev Event, m Meta) {
	if s, ok := ev.(interface{ setMeta(Meta) }); ok {
		s.setMeta(m)
	}
}
