package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VetrexCZ/pemacheck/internal/browser"
	"github.com/VetrexCZ/pemacheck/internal/browser/browsertest"
	"github.com/VetrexCZ/pemacheck/internal/history"
	"github.com/VetrexCZ/pemacheck/internal/verify"
	"github.com/VetrexCZ/pemacheck/internal/wait"
)

const target = "https://www.autodily-pema.cz"

var (
	cookieButton = browser.ByXPath("//*[@id='cookieConsent__buttonGrantAll']")
	searchField  = browser.ByName("search")
	resultTitle  = browser.ByCSS("h2.heading.productInline__heading")
)

func acquirerFor(page *browsertest.Page) browser.Acquirer {
	return func(context.Context) (browser.Session, error) { return page, nil }
}

func fastWaits() []wait.Option {
	return []wait.Option{wait.WithTimeout(100 * time.Millisecond), wait.WithPollInterval(10 * time.Millisecond)}
}

func shopSteps() []verify.Step {
	return []verify.Step{
		verify.PageOpen(target),
		verify.CookieConsent(verify.CookieParams{Accept: cookieButton, Timeout: 40 * time.Millisecond}),
		verify.Title("Autodíly"),
		verify.Search(verify.SearchParams{
			Field:    searchField,
			Query:    "Brzdové destičky",
			Result:   resultTitle,
			Expected: "Brzdové destičky",
		}),
	}
}

func newShop(title string) *browsertest.Page {
	page := browsertest.NewPage(title)
	page.Put(searchField, browsertest.Element{Visible: true})
	page.OnEnter(searchField, func(p *browsertest.Page) {
		p.Show(resultTitle, "Brzdové destičky ATE")
	})
	return page
}

type recorder struct {
	runs []history.Run
	err  error
}

func (r *recorder) Record(_ context.Context, run history.Run) error {
	r.runs = append(r.runs, run)
	return r.err
}

func TestRunPassesWithoutCookieBanner(t *testing.T) {
	page := newShop("Autodíly, náhradní díly, motorové oleje")
	rec := &recorder{}

	rep, err := New(Options{
		Target:      target,
		Steps:       shopSteps(),
		Acquire:     acquirerFor(page),
		WaitOptions: fastWaits(),
		History:     rec,
	}).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, rep.Passed)
	require.Len(t, rep.Outcomes, 4)
	assert.True(t, rep.Outcomes[1].SoftFail, "missing banner is a soft failure")
	assert.Equal(t, verify.StatusPass, rep.Outcomes[2].Status, "title still runs after the soft failure")
	assert.NotEmpty(t, rep.ID)
	assert.False(t, rep.Finished.Before(rep.Started))
	assert.Equal(t, 1, page.Releases())

	require.Len(t, rec.runs, 1)
	assert.Equal(t, rep.ID, rec.runs[0].ID)
	assert.True(t, rec.runs[0].Passed)
	assert.Len(t, rec.runs[0].Outcomes, 4)
}

func TestRunStopsAtFatalFailure(t *testing.T) {
	page := newShop("Stránka nenalezena")
	artifacts := filepath.Join(t.TempDir(), "artifacts")

	rep, err := New(Options{
		Target:       target,
		Steps:        shopSteps(),
		Acquire:      acquirerFor(page),
		WaitOptions:  fastWaits(),
		ArtifactsDir: artifacts,
	}).Run(context.Background())

	var ve *verify.VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, verify.StepTitle, ve.Step)
	var af *verify.AssertionFailure
	assert.ErrorAs(t, err, &af)

	assert.False(t, rep.Passed)
	assert.Same(t, err, rep.Err)
	require.Len(t, rep.Outcomes, 3, "search must not run after the title failed")
	assert.Equal(t, 1, page.Releases())

	for _, call := range page.Calls() {
		assert.False(t, strings.Contains(call, "search"), "unexpected call %q", call)
	}

	require.NotEmpty(t, rep.Screenshot)
	assert.Equal(t, artifacts, filepath.Dir(rep.Screenshot))
	buf, err := os.ReadFile(rep.Screenshot)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG\r\n\x1a\n", string(buf))
}

func TestRunAcquireFailure(t *testing.T) {
	boom := errors.New("chrome exited with status 1")
	rec := &recorder{}

	rep, err := New(Options{
		Target:  target,
		Steps:   shopSteps(),
		Acquire: func(context.Context) (browser.Session, error) { return nil, boom },
		History: rec,
	}).Run(context.Background())

	var se *browser.SessionError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, boom)
	assert.False(t, rep.Passed)
	assert.Empty(t, rep.Outcomes)
	require.Len(t, rec.runs, 1)
	assert.Contains(t, rec.runs[0].Error, "chrome exited")
}

func TestRunWithoutAcquirer(t *testing.T) {
	_, err := New(Options{Target: target}).Run(context.Background())
	assert.ErrorIs(t, err, browser.ErrNoBrowser)
}

func TestRunReleasesOnPanic(t *testing.T) {
	page := newShop("Autodíly")
	steps := []verify.Step{{
		Name: "explodes",
		Run: func(context.Context, verify.Env) (string, error) {
			panic("step bug")
		},
	}}

	o := New(Options{Target: target, Steps: steps, Acquire: acquirerFor(page)})
	assert.PanicsWithValue(t, "step bug", func() {
		_, _ = o.Run(context.Background())
	})
	assert.Equal(t, 1, page.Releases())
}

func TestRunCancelledContext(t *testing.T) {
	page := newShop("Autodíly")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := New(Options{
		Target:  target,
		Steps:   shopSteps(),
		Acquire: acquirerFor(page),
	}).Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rep.Outcomes)
	assert.Equal(t, 1, page.Releases())
}

func TestRunHistoryFailureIsNotFatal(t *testing.T) {
	page := newShop("Autodíly")
	rec := &recorder{err: errors.New("disk full")}

	rep, err := New(Options{
		Target:      target,
		Steps:       shopSteps()[:1],
		Acquire:     acquirerFor(page),
		WaitOptions: fastWaits(),
		History:     rec,
	}).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, rep.Passed)
}

func TestRunActionTimeout(t *testing.T) {
	page := newShop("Autodíly")
	page.Put(searchField, browsertest.Element{Visible: true, Disabled: true})
	page.PutAfter(150*time.Millisecond, searchField, browsertest.Element{Visible: true})

	steps := []verify.Step{{
		Name: "click-search",
		Run: func(ctx context.Context, env verify.Env) (string, error) {
			return env.UI.Timeout().String(), env.UI.Click(ctx, searchField)
		},
	}}

	rep, err := New(Options{
		Target:        target,
		Steps:         steps,
		Acquire:       acquirerFor(page),
		WaitOptions:   fastWaits(),
		ActionTimeout: time.Second,
	}).Run(context.Background())

	require.NoError(t, err, "clicks wait for ActionTimeout, not the 100ms wait default")
	assert.Equal(t, "1s", rep.Outcomes[0].Detail)
}

func TestRunRecordsIntoStore(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	page := newShop("Autodíly")
	rep, err := New(Options{
		Target:      target,
		Steps:       shopSteps(),
		Acquire:     acquirerFor(page),
		WaitOptions: fastWaits(),
		History:     store,
	}).Run(context.Background())
	require.NoError(t, err)

	got, err := store.Get(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.True(t, got.Passed)
	require.Len(t, got.Outcomes, len(rep.Outcomes))
	for i, o := range got.Outcomes {
		assert.Equal(t, rep.Outcomes[i].Name, o.Name)
		assert.Equal(t, rep.Outcomes[i].SoftFail, o.SoftFail)
	}
}
