package validation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/reon-protocol/reon-go/pkg/protocol"
	"github.com/reon-protocol/reon-go/pkg/store"
)

// DefaultAntiPassbackWindow is the default anti-passback window: a
// second same-direction passage by the same user inside it is denied.
const DefaultAntiPassbackWindow = 5 * time.Minute

// StrategyOffline names the offline strategy in decisions and logs.
const StrategyOffline = "offline"

// OfflineValidator answers access requests from the local registry.
// The checks run in a fixed order and stop at the first failure; the
// ordering is part of the contract, matching the device firmware's own
// local-list behavior.
type OfflineValidator struct {
	store  store.Store
	window time.Duration
	now    func() time.Time

	// userLocks serializes the anti-passback read-then-append window
	// per user, so two concurrent swipes by the same user cannot both
	// pass the check.
	userLocks sync.Map
}

// OfflineConfig configures an OfflineValidator.
type OfflineConfig struct {
	// AntiPassbackWindow is the same-direction lockout window
	// (default: DefaultAntiPassbackWindow).
	AntiPassbackWindow time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewOfflineValidator creates an offline validator with default settings.
func NewOfflineValidator(s store.Store) *OfflineValidator {
	return NewOfflineValidatorWithConfig(s, OfflineConfig{})
}

// NewOfflineValidatorWithConfig creates an offline validator with
// custom settings.
func NewOfflineValidatorWithConfig(s store.Store, cfg OfflineConfig) *OfflineValidator {
	if cfg.AntiPassbackWindow <= 0 {
		cfg.AntiPassbackWindow = DefaultAntiPassbackWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OfflineValidator{
		store:  s,
		window: cfg.AntiPassbackWindow,
		now:    cfg.Now,
	}
}

// Validate runs the check sequence. A deny is a normal decision; an
// error means the registry could not be consulted.
func (v *OfflineValidator) Validate(ctx context.Context, req *AccessRequest) (*AccessDecision, error) {
	cred, err := v.findCredential(ctx, req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Deny(DisplayCardNotFound, StrategyOffline), nil
		}
		return nil, fmt.Errorf("credential lookup failed: %w", err)
	}

	if !cred.Active {
		return Deny(DisplayCardInactive, StrategyOffline), nil
	}

	now := v.now()
	if !cred.ValidAt(now) {
		return Deny(DisplayCardExpired, StrategyOffline), nil
	}

	user, err := v.store.FindUser(ctx, cred.UserCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Deny(DisplayUserNotFound, StrategyOffline), nil
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	if !user.Active {
		return Deny(DisplayUserInactive, StrategyOffline), nil
	}
	if !user.ValidAt(now) {
		return Deny(DisplayUserExpired, StrategyOffline), nil
	}
	if !user.Allows(req.Reader) {
		return Deny(DisplayMethodNotAllowed, StrategyOffline), nil
	}

	// The anti-passback read and the grant's log append must be atomic
	// per user.
	unlock := v.lockUser(user.Code)
	defer unlock()

	blocked, err := v.antiPassbackBlocked(ctx, user.Code, req.Direction, now)
	if err != nil {
		return nil, fmt.Errorf("anti-passback check failed: %w", err)
	}
	if blocked {
		return Deny(DisplayAntiPassback, StrategyOffline), nil
	}

	event := &store.AccessEvent{
		UserCode:         user.Code,
		CredentialNumber: cred.Number,
		DeviceID:         req.Device.String(),
		Direction:        req.Direction.Code(),
		Reader:           req.Reader.Code(),
		Granted:          true,
		Display:          DisplayAccessGranted,
		OccurredAt:       now,
	}
	if err := v.store.AppendAccess(ctx, event); err != nil {
		return nil, fmt.Errorf("access log append failed: %w", err)
	}

	return Grant(user.Code, StrategyOffline), nil
}

// findCredential resolves the request's credential. Keypad requests
// carry the typed code instead of a card number.
func (v *OfflineValidator) findCredential(ctx context.Context, req *AccessRequest) (*store.Credential, error) {
	if req.Reader == protocol.ReaderKeypad {
		return v.store.FindCredentialByKeypadCode(ctx, req.Card)
	}
	return v.store.FindCredential(ctx, req.Card)
}

// antiPassbackBlocked reports whether the user has a granted passage in
// the same direction inside the window.
func (v *OfflineValidator) antiPassbackBlocked(ctx context.Context, userCode string, direction protocol.Direction, now time.Time) (bool, error) {
	last, err := v.store.LastGrantedAccess(ctx, userCode, direction.Code())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return now.Sub(last.OccurredAt) < v.window, nil
}

// lockUser acquires the per-user mutex and returns its unlock func.
func (v *OfflineValidator) lockUser(userCode string) func() {
	lock, _ := v.userLocks.LoadOrStore(userCode, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Compile-time interface satisfaction check.
var _ Validator = (*OfflineValidator)(nil)
