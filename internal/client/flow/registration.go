package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/atinyakov/TapKeeper/internal/client/poll"
	"github.com/atinyakov/TapKeeper/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegistrationBackend is the part of the backend the sign-up flow talks to.
type RegistrationBackend interface {
	ScanToken(ctx context.Context) (string, error)
	Register(ctx context.Context, req models.RegisterRequest) (models.StatusResponse, error)
}

// RegistrationController captures a card for a new account and submits it
// together with the chosen password.
type RegistrationController struct {
	backend     RegistrationBackend
	scheduler   *poll.Scheduler
	presenter   Presenter
	nav         Navigator
	landingPath string
	log         *zap.Logger

	mu      sync.Mutex
	session RegistrationSession
	cancel  context.CancelFunc
	handle  *poll.Handle
}

// NewRegistrationController wires a controller. log may be nil.
func NewRegistrationController(
	backend RegistrationBackend,
	scheduler *poll.Scheduler,
	presenter Presenter,
	nav Navigator,
	landingPath string,
	log *zap.Logger,
) *RegistrationController {
	if log == nil {
		log = zap.NewNop()
	}
	if landingPath == "" {
		landingPath = "/"
	}
	return &RegistrationController{
		backend:     backend,
		scheduler:   scheduler,
		presenter:   presenter,
		nav:         nav,
		landingPath: landingPath,
		log:         log.Named("registration"),
	}
}

// Session returns a copy of the current session.
func (c *RegistrationController) Session() RegistrationSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// TokenUID returns the captured card id, empty until one was read.
func (c *RegistrationController) TokenUID() string {
	return c.Session().TokenUID
}

// CollectPassword checks the password pair and, if it is usable, starts
// waiting for a card tap. Nothing is sent to the backend when the check
// fails.
func (c *RegistrationController) CollectPassword(ctx context.Context, password, confirm string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if password != confirm {
		return ErrPasswordMismatch
	}

	c.mu.Lock()
	c.resetLocked()
	sessCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	c.session = RegistrationSession{ID: id, Phase: CapturingToken}
	c.cancel = cancel
	h := poll.Start(sessCtx, c.scheduler, scanProbe(c.backend), func(uid string) {
		c.onToken(id, uid)
	})
	c.handle = h
	c.mu.Unlock()

	go c.watch(id, h)

	c.log.Debug("phase change", zap.String("session", id), zap.Stringer("phase", CapturingToken))
	c.presenter.PromptToken()
	return nil
}

// Submit creates the account. tokenUID must be the captured card; the
// check happens locally so an early submit never reaches the backend. A
// rejected submission keeps the session and the captured card so the user
// can correct the form and retry.
func (c *RegistrationController) Submit(ctx context.Context, username, password, tokenUID string) error {
	tokenUID = strings.TrimSpace(tokenUID)
	if tokenUID == "" {
		return ErrNoToken
	}

	resp, err := c.backend.Register(ctx, models.RegisterRequest{
		Username: username,
		Password: password,
		RFIDUID:  tokenUID,
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if !resp.Success {
		return &RejectedError{Message: resp.Message}
	}

	c.mu.Lock()
	id := c.session.ID
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.session.Phase = Submitted
	c.mu.Unlock()

	c.log.Debug("phase change", zap.String("session", id), zap.Stringer("phase", Submitted))
	c.nav.Navigate(c.landingPath)
	return nil
}

// Cancel abandons the current session.
func (c *RegistrationController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *RegistrationController) resetLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.handle != nil {
		c.handle.Cancel()
		c.handle = nil
	}
	c.session = RegistrationSession{Phase: CollectingPassword}
}

func (c *RegistrationController) watch(id string, h *poll.Handle) {
	<-h.Done()
	if !errors.Is(h.Err(), poll.ErrExhausted) {
		return
	}

	c.mu.Lock()
	stale := c.session.ID != id || c.session.Phase != CapturingToken
	if !stale {
		c.handle = nil
	}
	c.mu.Unlock()

	if !stale {
		c.presenter.ReportError(ErrTokenTimeout)
	}
}

func (c *RegistrationController) onToken(id, uid string) {
	c.mu.Lock()
	if c.session.ID != id || c.session.Phase != CapturingToken {
		c.mu.Unlock()
		c.log.Debug("dropping stale token", zap.String("session", id))
		return
	}
	c.session.TokenUID = uid
	c.session.Phase = ReadyToSubmit
	c.handle = nil
	c.mu.Unlock()

	c.log.Debug("phase change", zap.String("session", id), zap.Stringer("phase", ReadyToSubmit))
	c.presenter.TokenCaptured(uid)
}
