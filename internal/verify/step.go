// Package verify holds the named verification steps a run is made of and
// the login-form state machine.
package verify

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/logging"
	"github.com/VetrexCZ/pemacheck/internal/interact"
)

// Status is the result of one step.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Outcome records a finished step. It is never modified after Execute
// returns it.
type Outcome struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	SoftFail bool          `json:"soft_fail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Passed reports whether the step passed.
func (o Outcome) Passed() bool { return o.Status == StatusPass }

// Counts reports whether the outcome decides the overall result. Soft
// failures are logged but never fail a run.
func (o Outcome) Counts() bool { return !(o.SoftFail && o.Status == StatusFail) }

// Env is what a step runs against.
type Env struct {
	UI     *interact.Interactor
	Logger *log.Logger
}

// Page returns the page behind the interactor.
func (e Env) Page() browser.Page { return e.UI.Page() }

func (e Env) logger() *log.Logger {
	if e.Logger == nil {
		return logging.Discard()
	}
	return e.Logger
}

// RunFunc performs a step and returns a short detail for the outcome.
type RunFunc func(ctx context.Context, env Env) (string, error)

// Step is one named, independent check.
type Step struct {
	Name string
	// SoftFail lets a wait timeout be reported as a failed outcome without
	// stopping the run.
	SoftFail bool
	Run      RunFunc
}

// Execute runs step once. The returned error is a *VerificationError and is
// nil when the step passed or soft-failed.
func Execute(ctx context.Context, env Env, step Step) (Outcome, error) {
	logger := env.logger().With("step", step.Name)
	start := time.Now()
	detail, err := step.Run(ctx, env)
	out := Outcome{
		Name:     step.Name,
		Status:   StatusPass,
		Detail:   detail,
		Duration: time.Since(start),
	}
	if err == nil {
		logger.Info("step passed", "detail", detail, "duration", out.Duration.Round(time.Millisecond))
		return out, nil
	}

	out.Status = StatusFail
	out.Detail = err.Error()
	if step.SoftFail && errors.Is(err, browser.ErrTimeout) {
		out.SoftFail = true
		logger.Warn("step soft-failed, continuing", "err", err)
		return out, nil
	}

	var ve *VerificationError
	if !errors.As(err, &ve) || ve.Step != step.Name {
		ve = &VerificationError{Step: step.Name, Err: err}
	}
	out.Detail = ve.Error()
	logger.Error("step failed", "err", ve)
	return out, ve
}
