package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/target/specops-api/config"
	"github.com/target/specops-api/internal/bootstrap"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
	"github.com/target/specops-api/internal/tracker"
	"golang.org/x/sync/errgroup"
)

var errJobFailed = errors.New("job did not complete")

type waitOptions struct {
	Wait     bool
	Interval time.Duration
}

func (o *waitOptions) register(fs *flag.FlagSet) {
	fs.BoolVar(&o.Wait, "wait", false, "Follow the job until it reaches a final state")
	fs.DurationVar(&o.Interval, "interval", 0, "Poll interval override (default per job type)")
}

func runValidate(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	var req model.StartValidationRunRequest
	var wait waitOptions
	fs.Int64Var(&req.SpecificationID, "spec-id", 0, "Specification to validate (required)")
	fs.StringVar(&req.BaseURL, "base-url", "", "Target API base URL")
	fs.IntVar(&req.MaxTestCases, "max-test-cases", 0, "Upper bound on generated test cases")
	wait.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.SpecificationID <= 0 {
		return errors.New("--spec-id is required")
	}

	return startAndFollow(cc, wait, func(st *adminStack) (*model.AsyncJob, error) {
		return st.Services.Gateway.StartValidationRun(cc.Ctx, req)
	})
}

func runProcessHAR(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("process-har", flag.ContinueOnError)
	var req model.StartHARProcessingRequest
	var wait waitOptions
	fs.Int64Var(&req.UploadID, "upload-id", 0, "Uploaded HAR capture to process (required)")
	fs.BoolVar(&req.GenerateSpec, "generate-spec", true, "Generate a specification from the capture")
	fs.BoolVar(&req.GenerateMocks, "generate-mocks", false, "Generate mock definitions")
	fs.BoolVar(&req.RequestReview, "request-review", false, "Request a human review when processing completes")
	fs.Int64Var(&req.SpecificationID, "spec-id", 0, "Existing specification to update")
	wait.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.UploadID <= 0 {
		return errors.New("--upload-id is required")
	}

	return startAndFollow(cc, wait, func(st *adminStack) (*model.AsyncJob, error) {
		return st.Services.Gateway.StartHARProcessing(cc.Ctx, req)
	})
}

func runDeployMock(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("deploy-mock", flag.ContinueOnError)
	var req model.DeployMockRequest
	var wait waitOptions
	fs.Int64Var(&req.SpecificationID, "spec-id", 0, "Specification to deploy (required)")
	fs.StringVar(&req.Name, "name", "", "Deployment name")
	wait.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.SpecificationID <= 0 {
		return errors.New("--spec-id is required")
	}

	return startAndFollow(cc, wait, func(st *adminStack) (*model.AsyncJob, error) {
		return st.Services.Gateway.DeployMock(cc.Ctx, req)
	})
}

func startAndFollow(cc *commandContext, wait waitOptions, start func(*adminStack) (*model.AsyncJob, error)) error {
	st, err := newWatchStack(cc)
	if err != nil {
		return err
	}
	defer st.Close(cc)

	job, err := start(st)
	if err != nil {
		return err
	}
	if err := writef(cc.Out, "started %s (%s)\n", job.Ref(), job.Status); err != nil {
		return err
	}
	if !wait.Wait || job.Status.Terminal() {
		return jobOutcome(job.Ref(), tracker.Update{Ref: job.Ref(), Job: job, Final: true})
	}
	return followJobs(cc, st, []model.JobRef{job.Ref()}, wait.Interval)
}

func runWatch(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", 0, "Poll interval override (default per job type)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	refs, err := parseRefs(fs.Args())
	if err != nil {
		return err
	}

	st, err := newWatchStack(cc)
	if err != nil {
		return err
	}
	defer st.Close(cc)
	return followJobs(cc, st, refs, *interval)
}

func parseRefs(args []string) ([]model.JobRef, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one job ref (type/id) is required")
	}
	refs := make([]model.JobRef, 0, len(args))
	seen := make(map[model.JobRef]bool, len(args))
	for _, a := range args {
		ref, err := model.ParseJobRef(a)
		if err != nil {
			return nil, err
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs, nil
}

// followJobs awaits every ref concurrently and prints each update as it arrives.
// It fails when any job ends with an error.
func followJobs(cc *commandContext, st *adminStack, refs []model.JobRef, interval time.Duration) error {
	out := &syncWriter{w: cc.Out}
	g, ctx := errgroup.WithContext(cc.Ctx)
	for _, ref := range refs {
		g.Go(func() error {
			final, err := st.Services.Watches.Await(ctx, tracker.TrackRequest{Ref: ref, Interval: interval},
				func(u tracker.Update) { _ = writef(out, "%s\n", formatUpdate(u)) })
			if err != nil {
				return fmt.Errorf("%s: %w", ref, err)
			}
			return jobOutcome(ref, final)
		})
	}
	return g.Wait()
}

func jobOutcome(ref model.JobRef, u tracker.Update) error {
	switch {
	case u.Err != nil:
		return fmt.Errorf("%s: %w: %s", ref, errJobFailed, apperrors.DetailOf(u.Err).Detail)
	case u.Job != nil && u.Job.Status.Failed():
		msg := string(u.Job.Status)
		if u.Job.ErrorMessage != nil && *u.Job.ErrorMessage != "" {
			msg += ": " + *u.Job.ErrorMessage
		}
		return fmt.Errorf("%s: %w: %s", ref, errJobFailed, msg)
	default:
		return nil
	}
}

func formatUpdate(u tracker.Update) string {
	var b strings.Builder
	b.WriteString(u.Ref.String())
	if u.Err != nil {
		d := apperrors.DetailOf(u.Err)
		b.WriteString("  error: ")
		b.WriteString(d.Detail)
		return b.String()
	}
	if u.Job == nil {
		return b.String()
	}
	b.WriteString("  ")
	b.WriteString(string(u.Job.Status))
	if u.Job.Progress != nil {
		fmt.Fprintf(&b, "  %d%%", *u.Job.Progress)
	}
	if u.Job.CurrentStep != "" {
		b.WriteString("  ")
		b.WriteString(u.Job.CurrentStep)
	}
	if u.Job.ErrorMessage != nil && *u.Job.ErrorMessage != "" {
		b.WriteString("  error: ")
		b.WriteString(*u.Job.ErrorMessage)
	}
	if u.Final && len(u.Job.Result) > 0 {
		b.WriteString("\n")
		b.Write(u.Job.Result)
	}
	return b.String()
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type adminStack struct {
	Services *bootstrap.ServiceContainer
}

// newWatchStack wires the gateway and an in-memory watch service. Snapshots are
// never shared with a running server.
func newWatchStack(cc *commandContext) (*adminStack, error) {
	cfg := cc.Config
	cfg.Services = string(config.ServiceModeWatch)
	if err := bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return nil, err
	}
	svc, err := bootstrap.NewServices(cc.Ctx, &bootstrap.ServiceDeps{Config: &cfg, Logger: cc.Logger})
	if err != nil {
		return nil, err
	}
	return &adminStack{Services: svc}, nil
}

func (s *adminStack) Close(cc *commandContext) {
	if s.Services.Watches != nil {
		if err := s.Services.Watches.StopAll(cc.Ctx); err != nil {
			cc.Logger.Warn("stop watches", "error", err)
		}
	}
	if err := s.Services.Metrics.Close(); err != nil {
		cc.Logger.Warn("close statsd client", "error", err)
	}
}
