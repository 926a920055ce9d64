// Package session reconciles persisted credentials, biometric verdicts and
// remote credential validation into a single authenticated-or-not state, and
// requests navigation accordingly.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tabapp/tabapp/internal/appstate"
	"github.com/tabapp/tabapp/internal/biometric"
	"github.com/tabapp/tabapp/internal/identity"
	"github.com/tabapp/tabapp/internal/logging"
	"github.com/tabapp/tabapp/internal/navigation"
	"github.com/tabapp/tabapp/internal/securestore"
	"github.com/tabapp/tabapp/internal/validator"
)

// Validator checks a login/password pair against the user directory.
type Validator interface {
	Validate(ctx context.Context, login, password string) ([]identity.Record, error)
}

// UserLister feeds the debug mapping of directory users.
type UserLister interface {
	ListUsers(ctx context.Context) ([]validator.DirectoryUser, error)
}

// Deps are the collaborators of a Coordinator. Lister, Metrics and
// OnTransition are optional.
type Deps struct {
	Store        securestore.Store
	Validator    Validator
	Lister       UserLister
	Gate         biometric.Gate
	State        *appstate.Writer
	Navigator    navigation.Navigator
	Logger       *slog.Logger
	Metrics      *Metrics
	OnTransition func(Transition)
}

// DefaultPrompt is shown by the biometric challenge.
var DefaultPrompt = biometric.Prompt{Message: "Sign in with biometrics", CancelLabel: "Cancel"}

// Coordinator is the session state machine. Its methods are safe for
// concurrent use; I/O is never performed while holding its lock.
type Coordinator struct {
	store     securestore.Store
	validator Validator
	lister    UserLister
	gate      biometric.Gate
	writer    *appstate.Writer
	navigator navigation.Navigator
	logger    *slog.Logger
	metrics   *Metrics
	observe   func(Transition)
	prompt    biometric.Prompt

	mu         sync.Mutex
	state      State
	epoch      uint64
	started    bool
	probed     bool
	capability biometric.Capability
	debugUsers map[string]validator.DirectoryUser

	// publishMu orders the shared-state writes and navigation requests of
	// concurrent flows, so a stale flow cannot publish after a newer one.
	publishMu sync.Mutex
}

// New builds a Coordinator in the Idle phase.
func New(d Deps) (*Coordinator, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("session: secure store is required")
	case d.Validator == nil:
		return nil, errors.New("session: validator is required")
	case d.Gate == nil:
		return nil, errors.New("session: biometric gate is required")
	case d.State == nil:
		return nil, errors.New("session: app state writer is required")
	case d.Navigator == nil:
		return nil, errors.New("session: navigator is required")
	}
	return &Coordinator{
		store:      d.Store,
		validator:  d.Validator,
		lister:     d.Lister,
		gate:       d.Gate,
		writer:     d.State,
		navigator:  d.Navigator,
		logger:     logging.OrDiscard(d.Logger),
		metrics:    d.Metrics,
		observe:    d.OnTransition,
		prompt:     DefaultPrompt,
		debugUsers: map[string]validator.DirectoryUser{},
	}, nil
}

// SetPrompt overrides the biometric prompt text.
func (c *Coordinator) SetPrompt(p biometric.Prompt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = p
}

// State returns a snapshot of the coordinator.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Capability returns the last probed biometric capability.
func (c *Coordinator) Capability() biometric.Capability {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capability
}

// DebugUsers returns the directory users fetched at startup, keyed by login.
func (c *Coordinator) DebugUsers() map[string]validator.DirectoryUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]validator.DirectoryUser, len(c.debugUsers))
	for k, v := range c.debugUsers {
		out[k] = v
	}
	return out
}

// CanSubmit reports whether the explicit submit action is enabled for the
// given input.
func (c *Coordinator) CanSubmit(login, password string) bool {
	return identity.Submittable(login, password)
}

// Start runs the launch flows concurrently: the biometric capability probe,
// silent re-entry from the persisted record, and the debug user listing.
// None of them gates another. Start returns once all three have settled;
// failures are absorbed into the state, so the only error is
// ErrAlreadyStarted.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		c.probe(ctx)
		return nil
	})
	g.Go(func() error {
		c.resume(ctx)
		return nil
	})
	g.Go(func() error {
		c.loadDebugUsers(ctx)
		return nil
	})
	return g.Wait()
}

func (c *Coordinator) probe(ctx context.Context) {
	capability := c.gate.Capability(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probed = true
	c.capability = capability
	c.state.BiometricAvailable = capability.Available()
	c.state.BiometricKinds = append([]biometric.Kind(nil), capability.Kinds...)
}

func (c *Coordinator) loadDebugUsers(ctx context.Context) {
	if c.lister == nil {
		return
	}
	users, err := c.lister.ListUsers(ctx)
	if err != nil {
		c.logger.Warn("list directory users", "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range users {
		c.debugUsers[u.Login] = u
	}
}

// resume is the silent re-entry path. A missing record leaves the
// coordinator Idle; a failed challenge degrades to Failed without an alert.
func (c *Coordinator) resume(ctx context.Context) {
	epoch, ok := c.begin(CheckingPersisted, Transition{}, nil, Idle)
	if !ok {
		c.logger.Info("silent re-entry skipped", "phase", c.State().Phase.String())
		return
	}
	if err := c.reenter(ctx, epoch, true); err != nil && !errors.Is(err, ErrNoPersistedIdentity) {
		c.logger.Info("silent re-entry not completed", "error", err)
	}
}

// Unlock is the explicit biometric affordance: it re-enters the session of
// the persisted identity after a biometric challenge. A failed challenge
// returns an *AlertError naming the reason.
func (c *Coordinator) Unlock(ctx context.Context) error {
	c.mu.Lock()
	probed := c.probed
	c.mu.Unlock()
	if !probed {
		c.probe(ctx)
	}

	c.mu.Lock()
	available := c.capability.Available()
	c.mu.Unlock()

	if !available {
		if _, ok := c.begin(Failed, Transition{Reason: BiometricUnavailable}, func(s *State) {
			s.Failure = &Failure{Reason: BiometricUnavailable, Detail: biometric.ReasonNotAvailable}
		}, Idle, Failed); !ok {
			return ErrInvalidPhase
		}
		return &AlertError{Reason: BiometricUnavailable}
	}

	epoch, ok := c.begin(CheckingPersisted, Transition{}, nil, Idle, Failed)
	if !ok {
		return ErrInvalidPhase
	}
	return c.reenter(ctx, epoch, false)
}

func (c *Coordinator) reenter(ctx context.Context, epoch uint64, silent bool) error {
	var rec identity.Record
	found, err := c.store.Get(ctx, identity.PersistKey, &rec)
	if err != nil {
		c.logger.Warn("read persisted identity", "error", err)
		c.metrics.absorbedFailure(StorageFailure)
		found = false
	}
	if found {
		if err := rec.Validate(); err != nil {
			c.logger.Warn("discarding persisted identity", "error", err)
			c.metrics.absorbedFailure(StorageFailure)
			found = false
		}
	}
	if !found {
		c.advance(epoch, CheckingPersisted, Idle, Transition{}, nil)
		return ErrNoPersistedIdentity
	}

	if !c.advance(epoch, CheckingPersisted, AwaitingBiometric, Transition{Variant: VariantOptimisticDisplayName}, nil) {
		return ErrInvalidPhase
	}
	// Published before the verdict and kept on failure: the login screen
	// greets the returning user either way.
	c.publish(epoch, func() {
		c.setDisplayName(ctx, rec.Name())
	})

	c.mu.Lock()
	prompt := c.prompt
	c.mu.Unlock()

	result := c.gate.Challenge(ctx, prompt)
	if !result.Succeeded() {
		reason := reasonFor(result)
		if !c.advance(epoch, AwaitingBiometric, Failed, Transition{Reason: reason}, func(s *State) {
			s.Failure = &Failure{Reason: reason, Detail: result.Reason, Silent: silent}
		}) {
			return ErrInvalidPhase
		}
		return &AlertError{Reason: reason, Detail: result.Reason}
	}

	if !c.advance(epoch, AwaitingBiometric, Authenticated, Transition{}, func(s *State) {
		s.Identity = &rec
	}) {
		c.logger.Info("biometric verdict discarded", "login", rec.Login)
		return ErrInvalidPhase
	}
	if !c.publish(epoch, func() {
		c.navigate(ctx, navigation.Request{Mode: navigation.Replace, Target: navigation.Home()})
	}) {
		c.logger.Info("biometric sign-in superseded", "login", rec.Login)
		return ErrInvalidPhase
	}
	return nil
}

// Submit validates an explicit login. It is available from Idle and Failed.
// A submission made while another is being validated is rejected with
// ErrSubmitInProgress rather than queued.
func (c *Coordinator) Submit(ctx context.Context, login, password string) error {
	if !identity.Submittable(login, password) {
		return ErrSubmitDisabled
	}

	epoch, ok := c.begin(ValidatingCredentials, Transition{}, nil, Idle, Failed)
	if !ok {
		if c.State().Phase == ValidatingCredentials {
			return ErrSubmitInProgress
		}
		return ErrInvalidPhase
	}

	login = strings.TrimSpace(login)
	matches, err := c.validator.Validate(ctx, login, password)
	if err != nil {
		c.advance(epoch, ValidatingCredentials, Failed, Transition{Reason: NetworkFailure}, func(s *State) {
			s.Failure = &Failure{Reason: NetworkFailure, Detail: err.Error()}
		})
		return fmt.Errorf("validate credentials: %w", err)
	}

	if len(matches) > 1 {
		c.logger.Warn("directory returned more than one match", "login", login, "matches", len(matches))
	}
	if len(matches) == 0 || matches[0].Validate() != nil {
		c.advance(epoch, ValidatingCredentials, Failed, Transition{Reason: InvalidCredentials}, func(s *State) {
			s.Failure = &Failure{Reason: InvalidCredentials, Detail: ErrInvalidCredentials.Error()}
		})
		return ErrInvalidCredentials
	}

	rec := matches[0]
	// The phase is committed before persisting so that a guest entry made
	// while validating wins and leaves the stored record untouched.
	if !c.advance(epoch, ValidatingCredentials, Authenticated, Transition{}, func(s *State) {
		s.Identity = &rec
	}) {
		c.logger.Info("credential verdict discarded", "login", rec.Login)
		return ErrInvalidPhase
	}

	if err := c.store.Put(ctx, identity.PersistKey, rec); err != nil {
		c.logger.Warn("persist identity", "error", err, "login", rec.Login)
		c.metrics.absorbedFailure(StorageFailure)
	}
	if !c.publish(epoch, func() {
		c.setDisplayName(ctx, rec.Login)
		c.navigate(ctx, navigation.Request{Mode: navigation.Replace, Target: navigation.Home()})
	}) {
		c.logger.Info("credential sign-in superseded", "login", rec.Login)
		return ErrInvalidPhase
	}
	return nil
}

// ContinueAsGuest enters the authenticated area without an identity. It is
// available from every phase except Authenticated and abandons any
// validation or challenge still in flight.
func (c *Coordinator) ContinueAsGuest(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase == Authenticated {
		c.mu.Unlock()
		return ErrInvalidPhase
	}
	c.epoch++
	t := c.commitLocked(GuestMode, Transition{Variant: VariantGuest}, func(s *State) {
		s.Identity = nil
	})
	c.mu.Unlock()
	c.emit(t)

	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.navigate(ctx, navigation.Request{Mode: navigation.Replace, Target: navigation.Home(), Guest: true})
	return nil
}

// SignOut leaves the authenticated area: the identity fields of the shared
// state are cleared and the login screen is requested. The persisted record
// is kept so the next launch can offer biometric re-entry.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase != Authenticated && c.state.Phase != GuestMode {
		c.mu.Unlock()
		return ErrInvalidPhase
	}
	c.epoch++
	t := c.commitLocked(Idle, Transition{Variant: VariantSignOut}, func(s *State) {
		s.Identity = nil
	})
	c.mu.Unlock()
	c.emit(t)

	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	if err := c.writer.Reset(ctx); err != nil {
		c.logger.Warn("reset app state", "error", err)
	}
	c.navigate(ctx, navigation.Request{Mode: navigation.Replace, Target: navigation.Login{}})
	return nil
}

// begin moves to phase `to` when the current phase is one of from, starting
// a new epoch. Flows carry the epoch so that an outcome arriving after the
// user moved on is dropped.
func (c *Coordinator) begin(to Phase, t Transition, mutate func(*State), from ...Phase) (uint64, bool) {
	c.mu.Lock()
	allowed := false
	for _, p := range from {
		if c.state.Phase == p {
			allowed = true
			break
		}
	}
	if !allowed {
		c.mu.Unlock()
		return 0, false
	}
	c.epoch++
	epoch := c.epoch
	committed := c.commitLocked(to, t, mutate)
	c.mu.Unlock()
	c.emit(committed)
	return epoch, true
}

// advance commits from → to only if no other flow has started since epoch.
func (c *Coordinator) advance(epoch uint64, from, to Phase, t Transition, mutate func(*State)) bool {
	c.mu.Lock()
	if c.epoch != epoch || c.state.Phase != from {
		c.mu.Unlock()
		return false
	}
	committed := c.commitLocked(to, t, mutate)
	c.mu.Unlock()
	c.emit(committed)
	return true
}

func (c *Coordinator) commitLocked(to Phase, t Transition, mutate func(*State)) Transition {
	t.From = c.state.Phase
	t.To = to
	c.state.Phase = to
	if to != Failed {
		c.state.Failure = nil
	}
	if mutate != nil {
		mutate(&c.state)
	}
	return t
}

func (c *Coordinator) emit(t Transition) {
	attrs := []any{"from", t.From.String(), "to", t.To.String()}
	if t.Reason != "" {
		attrs = append(attrs, "reason", string(t.Reason))
	}
	if t.Variant != "" {
		attrs = append(attrs, "variant", string(t.Variant))
	}
	c.logger.Info("session transition", attrs...)
	c.metrics.transition(t.To)
	if c.observe != nil {
		c.observe(t)
	}
}

// publish runs fn unless another flow has started since epoch.
func (c *Coordinator) publish(epoch uint64, fn func()) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.mu.Lock()
	current := c.epoch == epoch
	c.mu.Unlock()
	if !current {
		return false
	}
	fn()
	return true
}

func (c *Coordinator) setDisplayName(ctx context.Context, name string) {
	if err := c.writer.SetDisplayName(ctx, name); err != nil {
		c.logger.Warn("publish display name", "error", err)
	}
}

func (c *Coordinator) navigate(ctx context.Context, req navigation.Request) {
	if err := c.navigator.Navigate(ctx, req); err != nil {
		c.logger.Warn("navigation request failed", "error", err, "target", req.Target.String())
	}
}
