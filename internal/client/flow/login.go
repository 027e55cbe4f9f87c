package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/atinyakov/TapKeeper/internal/client/poll"
	"github.com/atinyakov/TapKeeper/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthBackend is the part of the backend the login flow talks to.
type AuthBackend interface {
	Login(ctx context.Context, username, password string) (models.LoginResponse, error)
	ScanToken(ctx context.Context) (string, error)
	VerifyToken(ctx context.Context, userID models.UserID, uid string) (models.StatusResponse, error)
	Logout(ctx context.Context) (models.StatusResponse, error)
}

// LoginConfig selects the protocol variant and where to go afterwards.
type LoginConfig struct {
	Variant           Variant
	AuthenticatedPath string
}

// LoginController owns at most one sign-in session at a time. A new
// submission always replaces the previous session, and callbacks that
// belong to a replaced session are ignored.
type LoginController struct {
	backend   AuthBackend
	scheduler *poll.Scheduler
	presenter Presenter
	nav       Navigator
	cfg       LoginConfig
	log       *zap.Logger

	mu      sync.Mutex
	session AuthSession
	cancel  context.CancelFunc
	handle  *poll.Handle
}

// NewLoginController wires a controller. log may be nil.
func NewLoginController(
	backend AuthBackend,
	scheduler *poll.Scheduler,
	presenter Presenter,
	nav Navigator,
	cfg LoginConfig,
	log *zap.Logger,
) *LoginController {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.AuthenticatedPath == "" {
		cfg.AuthenticatedPath = "/vault"
	}
	return &LoginController{
		backend:   backend,
		scheduler: scheduler,
		presenter: presenter,
		nav:       nav,
		cfg:       cfg,
		log:       log.Named("login"),
	}
}

// Session returns a copy of the current session.
func (c *LoginController) Session() AuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SubmitPassword starts a fresh session and checks the password. In the
// bound-token variant an accepted password moves the session to
// AwaitingToken and starts polling for a tap; polling lives until ctx is
// done, Cancel is called or another password is submitted.
func (c *LoginController) SubmitPassword(ctx context.Context, username, password string) error {
	c.mu.Lock()
	c.resetLocked()
	sessCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	c.session = AuthSession{ID: id, Phase: AwaitingPassword}
	c.cancel = cancel
	c.mu.Unlock()

	resp, err := c.backend.Login(sessCtx, username, password)

	c.mu.Lock()
	if c.session.ID != id {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("submit password: %w", err)
	}
	if !resp.Success {
		c.mu.Unlock()
		c.log.Debug("password rejected", zap.String("session", id))
		return ErrInvalidCredentials
	}

	if c.cfg.Variant == VariantPasswordOnly {
		c.session.Phase = Succeeded
		c.session.UserID = resp.UserID
		c.mu.Unlock()
		c.log.Debug("phase change", zap.String("session", id), zap.Stringer("phase", Succeeded))
		c.nav.Navigate(c.cfg.AuthenticatedPath)
		return nil
	}

	if resp.UserID == "" {
		c.session.Phase = Failed
		c.mu.Unlock()
		return ErrMissingUserID
	}

	c.session.UserID = resp.UserID
	c.session.Phase = AwaitingToken
	c.startPollingLocked(sessCtx, id)
	c.mu.Unlock()

	c.log.Debug("phase change", zap.String("session", id), zap.Stringer("phase", AwaitingToken))
	c.presenter.PromptToken()
	return nil
}

// Cancel abandons the current session. Results still in flight for it are
// dropped when they arrive.
func (c *LoginController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Logout ends the backend session and discards the local one.
func (c *LoginController) Logout(ctx context.Context) error {
	c.Cancel()
	resp, err := c.backend.Logout(ctx)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if !resp.Success {
		return errors.New("logout rejected")
	}
	return nil
}

// resetLocked stops polling and replaces the session with an empty one.
func (c *LoginController) resetLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.session = AuthSession{Phase: AwaitingPassword}
}

// startPollingLocked runs one polling loop for the whole token step. A
// card that fails verification counts as a transient scan failure, so the
// next scan waits ErrorDelay and the Timeout and MaxAttempts bounds span
// every retry.
func (c *LoginController) startPollingLocked(ctx context.Context, id string) {
	h := poll.Start(ctx, c.scheduler, c.scanAndVerify(id), func(uid string) {
		c.onVerified(id, uid)
	})
	c.handle = h
	go c.watch(id, h)
}

// watch marks the session failed when polling gives up.
func (c *LoginController) watch(id string, h *poll.Handle) {
	<-h.Done()
	if !errors.Is(h.Err(), poll.ErrExhausted) {
		return
	}

	c.mu.Lock()
	if c.session.ID != id || (c.session.Phase != AwaitingToken && c.session.Phase != Verifying) {
		c.mu.Unlock()
		return
	}
	c.session.Phase = Failed
	c.session.TokenUID = ""
	c.handle = nil
	c.mu.Unlock()

	c.log.Debug("phase change", zap.String("session", id), zap.Stringer("phase", Failed))
	c.presenter.ReportError(ErrTokenTimeout)
}

// scanAndVerify scans for a card and verifies it against the user bound to
// session id. It is ready only once the backend accepted the card.
func (c *LoginController) scanAndVerify(id string) poll.Probe[string] {
	return func(ctx context.Context) poll.Result[string] {
		uid, err := c.backend.ScanToken(ctx)
		if err != nil {
			return poll.TransientError[string](err)
		}
		if uid == "" {
			return poll.NotReady[string]()
		}
		if err := c.verify(ctx, id, uid); err != nil {
			return poll.TransientError[string](err)
		}
		return poll.Ready(uid)
	}
}

// verify checks uid with the backend. A rejected or failed verification
// puts the session back in AwaitingToken and is reported to the user.
func (c *LoginController) verify(ctx context.Context, id, uid string) error {
	c.mu.Lock()
	if c.session.ID != id || c.session.Phase != AwaitingToken {
		c.mu.Unlock()
		c.log.Debug("dropping stale token", zap.String("session", id))
		return ErrSuperseded
	}
	c.session.Phase = Verifying
	c.session.TokenUID = uid
	userID := c.session.UserID
	c.mu.Unlock()

	resp, err := c.backend.VerifyToken(ctx, userID, uid)

	c.mu.Lock()
	if c.session.ID != id {
		c.mu.Unlock()
		c.log.Debug("dropping stale verification", zap.String("session", id))
		return ErrSuperseded
	}
	if err == nil && resp.Success {
		// Succeeded is set by onVerified once polling hands the uid over.
		c.mu.Unlock()
		return nil
	}

	// The tapped uid is never kept after a failed verification.
	c.session.Phase = AwaitingToken
	c.session.TokenUID = ""
	c.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	report := ErrTokenMismatch
	if err != nil {
		report = fmt.Errorf("verify token: %w", err)
	}
	c.log.Debug("verification failed", zap.String("session", id), zap.Error(report))
	c.presenter.ReportError(report)
	c.presenter.PromptToken()
	return report
}

// onVerified completes sign-in for a card the backend accepted.
func (c *LoginController) onVerified(id, uid string) {
	c.mu.Lock()
	if c.session.ID != id || c.session.Phase != Verifying || c.session.TokenUID != uid {
		c.mu.Unlock()
		c.log.Debug("dropping stale verification", zap.String("session", id))
		return
	}
	c.session.Phase = Succeeded
	c.handle = nil
	c.mu.Unlock()

	c.log.Debug("phase change", zap.String("session", id), zap.Stringer("phase", Succeeded))
	c.nav.Navigate(c.cfg.AuthenticatedPath)
}
