// Package runner sequences verification steps against a single browser
// session and always releases that session.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/logging"
	"github.com/VetrexCZ/pemacheck/internal/history"
	"github.com/VetrexCZ/pemacheck/internal/interact"
	"github.com/VetrexCZ/pemacheck/internal/verify"
	"github.com/VetrexCZ/pemacheck/internal/wait"
)

// screenshotTimeout bounds the failure screenshot, which is taken even when
// the run's context has already ended.
const screenshotTimeout = 10 * time.Second

// Report is the aggregate result of one run.
type Report struct {
	ID         string           `json:"id"`
	Target     string           `json:"target"`
	Started    time.Time        `json:"started"`
	Finished   time.Time        `json:"finished"`
	Outcomes   []verify.Outcome `json:"outcomes"`
	Passed     bool             `json:"passed"`
	Err        error            `json:"-"`
	Screenshot string           `json:"screenshot,omitempty"`
}

// Recorder persists finished reports.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Options configures an Orchestrator.
type Options struct {
	Target  string
	Steps   []verify.Step
	Acquire browser.Acquirer

	// WaitOptions configure the wait engine built for each session.
	WaitOptions []wait.Option
	// ActionTimeout is the wait before clicks and typing; zero uses the
	// wait engine default.
	ActionTimeout time.Duration

	// ArtifactsDir receives a screenshot when a step fails fatally. Empty
	// disables screenshots.
	ArtifactsDir string
	// History, when set, receives every finished report.
	History Recorder

	Logger *log.Logger
}

// Orchestrator runs a fixed list of steps.
type Orchestrator struct {
	opts   Options
	logger *log.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{opts: opts, logger: logger}
}

// Run acquires a session, runs every step in order until the first fatal
// failure and releases the session on every exit path. It returns the
// report together with the first fatal error, if any.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		ID:      uuid.NewString(),
		Target:  o.opts.Target,
		Started: time.Now(),
	}
	logger := o.logger.With("run", rep.ID)
	logger.Info("starting run", "target", rep.Target, "steps", len(o.opts.Steps))

	session, err := o.acquire(ctx)
	if err != nil {
		rep.Err = err
		o.finish(ctx, logger, rep)
		return rep, err
	}
	defer func() {
		if err := session.Release(); err != nil {
			logger.Warn("failed to release browser session", "err", err)
			return
		}
		logger.Debug("browser session released")
	}()

	waits := wait.New(session, append([]wait.Option{wait.WithLogger(logger)}, o.opts.WaitOptions...)...)
	env := verify.Env{
		UI:     interact.New(session, waits, o.opts.ActionTimeout, logger),
		Logger: logger,
	}

	for _, step := range o.opts.Steps {
		if err := ctx.Err(); err != nil {
			rep.Err = err
			break
		}
		out, err := verify.Execute(ctx, env, step)
		rep.Outcomes = append(rep.Outcomes, out)
		if err != nil {
			rep.Err = err
			rep.Screenshot = o.capture(ctx, logger, session, rep.ID, step.Name)
			break
		}
	}

	o.finish(ctx, logger, rep)
	return rep, rep.Err
}

func (o *Orchestrator) acquire(ctx context.Context) (browser.Session, error) {
	if o.opts.Acquire == nil {
		return nil, &browser.SessionError{Op: "acquire", Err: browser.ErrNoBrowser}
	}
	session, err := o.opts.Acquire(ctx)
	if err != nil {
		var se *browser.SessionError
		if !errors.As(err, &se) {
			err = &browser.SessionError{Op: "acquire", Err: err}
		}
		return nil, err
	}
	if session == nil {
		return nil, &browser.SessionError{Op: "acquire", Err: browser.ErrNoBrowser}
	}
	return session, nil
}

// capture saves a full-page screenshot and returns its path, or "" when
// screenshots are disabled or the capture failed.
func (o *Orchestrator) capture(ctx context.Context, logger *log.Logger, page browser.Page, runID, step string) string {
	if o.opts.ArtifactsDir == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()

	buf, err := page.Screenshot(ctx, browser.ScreenshotOptions{FullPage: true})
	if err != nil {
		logger.Warn("failed to capture screenshot", "step", step, "err", err)
		return ""
	}
	if err := os.MkdirAll(o.opts.ArtifactsDir, 0755); err != nil {
		logger.Warn("failed to create artifacts dir", "dir", o.opts.ArtifactsDir, "err", err)
		return ""
	}
	path := filepath.Join(o.opts.ArtifactsDir, fmt.Sprintf("%s-%s.png", runID, step))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		logger.Warn("failed to write screenshot", "path", path, "err", err)
		return ""
	}
	logger.Info("saved failure screenshot", "path", path)
	return path
}

func (o *Orchestrator) finish(ctx context.Context, logger *log.Logger, rep *Report) {
	rep.Finished = time.Now()
	rep.Passed = rep.Err == nil
	var passed, failed, soft int
	for _, out := range rep.Outcomes {
		switch {
		case out.Passed():
			passed++
		case !out.Counts():
			soft++
		default:
			failed++
			rep.Passed = false
		}
	}

	kv := []any{
		"passed", passed,
		"failed", failed,
		"soft_failed", soft,
		"duration", rep.Finished.Sub(rep.Started).Round(time.Millisecond),
	}
	if rep.Passed {
		logger.Info("all checks passed", kv...)
	} else {
		logger.Error("run failed", append(kv, "err", rep.Err)...)
	}

	if o.opts.History == nil {
		return
	}
	if err := o.opts.History.Record(context.WithoutCancel(ctx), toHistory(rep)); err != nil {
		logger.Warn("failed to record run history", "err", err)
	}
}

func toHistory(rep *Report) history.Run {
	run := history.Run{
		ID:         rep.ID,
		Target:     rep.Target,
		Started:    rep.Started,
		Finished:   rep.Finished,
		Passed:     rep.Passed,
		Screenshot: rep.Screenshot,
	}
	if rep.Err != nil {
		run.Error = rep.Err.Error()
	}
	for _, out := range rep.Outcomes {
		run.Outcomes = append(run.Outcomes, history.Outcome{
			Name:     out.Name,
			Status:   string(out.Status),
			Detail:   out.Detail,
			SoftFail: out.SoftFail,
			Duration: out.Duration,
		})
	}
	return run
}
