package validation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Online strategy constants.
const (
	// DefaultRemoteTimeout is the default per-attempt authority timeout.
	DefaultRemoteTimeout = 3000 * time.Millisecond

	// MinRemoteTimeout and MaxRemoteTimeout bound the configurable
	// per-attempt timeout.
	MinRemoteTimeout = 500 * time.Millisecond
	MaxRemoteTimeout = 10000 * time.Millisecond

	// DefaultRemoteRetries is the default retry budget. The total
	// attempt count is retries + 1.
	DefaultRemoteRetries = 2
)

// StrategyOnline names the online strategy in decisions and logs.
const StrategyOnline = "online"

// ErrInvalidRemoteTimeout indicates a timeout outside the allowed bounds.
var ErrInvalidRemoteTimeout = errors.New("invalid remote timeout")

// AuthorityClient is the remote authority the online strategy consults.
// Implementations must honor ctx cancellation: once a call's context is
// done its result is discarded, never applied late.
type AuthorityClient interface {
	Validate(ctx context.Context, req *AccessRequest) (*AccessDecision, error)
}

// OnlineValidator forwards access requests to a remote authority, with
// a bounded per-attempt timeout and a retry budget. When every attempt
// fails it falls back to the offline validator exactly once, so access
// control degrades to the local registry instead of failing shut.
type OnlineValidator struct {
	authority AuthorityClient
	fallback  Validator

	timeout time.Duration
	retries int
	backoff *Backoff
}

// OnlineConfig configures an OnlineValidator.
type OnlineConfig struct {
	// Timeout is the per-attempt authority timeout
	// (default: DefaultRemoteTimeout, bounds [MinRemoteTimeout, MaxRemoteTimeout]).
	Timeout time.Duration

	// Retries is the retry budget after the first attempt
	// (default: DefaultRemoteRetries). Zero means a single attempt;
	// negative is rejected.
	Retries int

	// Backoff overrides the delay schedule between attempts.
	Backoff *Backoff
}

// NewOnlineValidator creates an online validator with default settings.
func NewOnlineValidator(authority AuthorityClient, fallback Validator) (*OnlineValidator, error) {
	return NewOnlineValidatorWithConfig(authority, fallback, OnlineConfig{Retries: -1})
}

// NewOnlineValidatorWithConfig creates an online validator with custom
// settings.
func NewOnlineValidatorWithConfig(authority AuthorityClient, fallback Validator, cfg OnlineConfig) (*OnlineValidator, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	if cfg.Timeout < MinRemoteTimeout || cfg.Timeout > MaxRemoteTimeout {
		return nil, fmt.Errorf("%w: %v outside [%v, %v]",
			ErrInvalidRemoteTimeout, cfg.Timeout, MinRemoteTimeout, MaxRemoteTimeout)
	}
	if cfg.Retries < 0 {
		cfg.Retries = DefaultRemoteRetries
	}
	if cfg.Backoff == nil {
		cfg.Backoff = NewBackoff()
	}

	return &OnlineValidator{
		authority: authority,
		fallback:  fallback,
		timeout:   cfg.Timeout,
		retries:   cfg.Retries,
		backoff:   cfg.Backoff,
	}, nil
}

// Timeout returns the per-attempt authority timeout.
func (v *OnlineValidator) Timeout() time.Duration {
	return v.timeout
}

// Retries returns the retry budget.
func (v *OnlineValidator) Retries() int {
	return v.retries
}

// Validate tries the authority up to retries+1 times, then runs the
// offline fallback once. Each attempt gets its own deadline; when the
// deadline fires the attempt's context is cancelled so a late reply
// cannot become the decision.
func (v *OnlineValidator) Validate(ctx context.Context, req *AccessRequest) (*AccessDecision, error) {
	attempts := v.retries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := v.backoff.Next()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		decision, err := v.tryAuthority(ctx, req)
		if err == nil {
			v.backoff.Reset()
			return decision, nil
		}
		lastErr = err

		// The caller gave up; don't fall back on its behalf.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	v.backoff.Reset()

	decision, err := v.fallback.Validate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("authority unreachable (%v) and fallback failed: %w", lastErr, err)
	}
	return decision, nil
}

// tryAuthority runs one bounded authority call.
func (v *OnlineValidator) tryAuthority(ctx context.Context, req *AccessRequest) (*AccessDecision, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	decision, err := v.authority.Validate(attemptCtx, req)
	if err != nil {
		return nil, err
	}

	// A reply that raced the deadline is discarded.
	if attemptCtx.Err() != nil {
		return nil, attemptCtx.Err()
	}

	decision.Strategy = StrategyOnline
	return decision, nil
}

// Compile-time interface satisfaction check.
var _ Validator = (*OnlineValidator)(nil)
