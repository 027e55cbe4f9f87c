package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/atinyakov/TapKeeper/internal/client/poll"
	"github.com/atinyakov/TapKeeper/internal/models"
)

type scanStep struct {
	uid string
	err error
}

type verifyCall struct {
	userID models.UserID
	uid    string
}

// fakeBackend scripts backend answers and counts calls. Once the scripted
// scans run out every further scan reports "not ready".
type fakeBackend struct {
	mu sync.Mutex

	loginResp  models.LoginResponse
	loginErr   error
	loginCalls int

	scans     []scanStep
	// repeatUID is returned by every scan after the scripted ones, like a
	// reader that does not clear its last tag.
	repeatUID string
	scanHook  func(ctx context.Context, n int)
	scanCalls int

	verifyResps []models.StatusResponse
	verifyErrs  []error
	verifyArgs  []verifyCall

	registerResp models.StatusResponse
	registerErr  error
	registerArgs []models.RegisterRequest

	logoutCalls int
}

func (f *fakeBackend) Login(ctx context.Context, username, password string) (models.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	return f.loginResp, f.loginErr
}

func (f *fakeBackend) ScanToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	n := f.scanCalls
	f.scanCalls++
	hook := f.scanHook
	step := scanStep{uid: f.repeatUID}
	if n < len(f.scans) {
		step = f.scans[n]
	}
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, n)
	}
	return step.uid, step.err
}

func (f *fakeBackend) VerifyToken(ctx context.Context, userID models.UserID, uid string) (models.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.verifyArgs)
	f.verifyArgs = append(f.verifyArgs, verifyCall{userID: userID, uid: uid})
	var resp models.StatusResponse
	var err error
	if n < len(f.verifyResps) {
		resp = f.verifyResps[n]
	}
	if n < len(f.verifyErrs) {
		err = f.verifyErrs[n]
	}
	return resp, err
}

func (f *fakeBackend) Register(ctx context.Context, req models.RegisterRequest) (models.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerArgs = append(f.registerArgs, req)
	return f.registerResp, f.registerErr
}

func (f *fakeBackend) Logout(ctx context.Context) (models.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return models.StatusResponse{Success: true}, nil
}

func (f *fakeBackend) counts() (login, scan, verify, register int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.scanCalls, len(f.verifyArgs), len(f.registerArgs)
}

type fakePresenter struct {
	mu       sync.Mutex
	prompts  int
	captured chan string
	errs     chan error
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{
		captured: make(chan string, 16),
		errs:     make(chan error, 16),
	}
}

func (p *fakePresenter) PromptToken() {
	p.mu.Lock()
	p.prompts++
	p.mu.Unlock()
}

func (p *fakePresenter) TokenCaptured(uid string) { p.captured <- uid }
func (p *fakePresenter) ReportError(err error)    { p.errs <- err }

func (p *fakePresenter) promptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompts
}

type fakeNavigator struct {
	paths chan string
}

func newFakeNavigator() *fakeNavigator {
	return &fakeNavigator{paths: make(chan string, 4)}
}

func (n *fakeNavigator) Navigate(path string) { n.paths <- path }

// immediateScheduler fires every delay at once.
func immediateScheduler(cfg poll.Config) *poll.Scheduler {
	return poll.NewScheduler(cfg, poll.WithAfter(func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}))
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flow callback")
	}
	var zero T
	return zero
}

// gatedClock hands every requested delay to the test, which decides when
// it elapses.
type gatedClock struct {
	requests chan gatedDelay
}

type gatedDelay struct {
	d    time.Duration
	fire chan time.Time
}

func newGatedClock() *gatedClock {
	return &gatedClock{requests: make(chan gatedDelay, 16)}
}

func (c *gatedClock) after(d time.Duration) <-chan time.Time {
	g := gatedDelay{d: d, fire: make(chan time.Time, 1)}
	c.requests <- g
	return g.fire
}
