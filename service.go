package tokenward

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/averano/tokenward/password"
	"github.com/averano/tokenward/revocation"
	"github.com/averano/tokenward/token"
)

// Service is the only component that mints, verifies, or invalidates tokens.
// It holds no mutable in-process state: shared truth lives in the revocation
// registry and the credential store, and every call re-reads it. All methods
// are safe for concurrent use, including concurrent calls for the same token.
type Service struct {
	config   Config
	codec    *token.Codec
	registry *revocation.Registry
	accounts AccountProvider
	audit    *auditDispatcher
	metrics  *Metrics
	password *password.Argon2
}

// Close releases background resources (the audit dispatcher). The Service
// must not be used afterwards.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.audit != nil {
		s.audit.Close()
	}
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// AuditDropped reports how many audit events were dropped under backpressure.
func (s *Service) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

func (s *Service) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

func (s *Service) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID, tokenID string,
	cause error,
	metadata func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		AccountID: accountID,
		TokenID:   tokenID,
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	s.audit.Emit(ctx, event)
}

// getAccount reads the account with the configured timeout, retrying timed
// out attempts within the retry budget. Missing and inactive accounts both
// surface as ErrAccountNotFound; everything else is a store outage.
func (s *Service) getAccount(ctx context.Context, id string) (AccountRecord, error) {
	return s.fetchAccount(ctx, func(callCtx context.Context) (AccountRecord, error) {
		return s.accounts.GetAccount(callCtx, id)
	})
}

func (s *Service) getAccountByIdentifier(ctx context.Context, identifier string) (AccountRecord, error) {
	return s.fetchAccount(ctx, func(callCtx context.Context) (AccountRecord, error) {
		return s.accounts.GetAccountByIdentifier(callCtx, identifier)
	})
}

func (s *Service) fetchAccount(
	ctx context.Context,
	fetch func(context.Context) (AccountRecord, error),
) (AccountRecord, error) {
	attempts := s.config.Store.RetryAttempts + 1

	var lastErr error
	for i := 0; i < attempts; i++ {
		callCtx, cancel := context.WithTimeout(ctx, s.config.Store.Timeout)
		rec, err := fetch(callCtx)
		timedOut := callTimedOut(callCtx, err)
		cancel()

		if err == nil {
			return rec, nil
		}
		if errors.Is(err, ErrAccountNotFound) {
			return AccountRecord{}, ErrAccountNotFound
		}

		lastErr = err
		if !timedOut {
			break
		}
	}

	return AccountRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}

// isRevoked consults the registry with the same timeout and retry budget.
// On exhaustion the caller fails closed.
func (s *Service) isRevoked(ctx context.Context, jti string) (bool, error) {
	attempts := s.config.Store.RetryAttempts + 1

	var lastErr error
	for i := 0; i < attempts; i++ {
		callCtx, cancel := context.WithTimeout(ctx, s.config.Store.Timeout)
		revoked, err := s.registry.IsRevoked(callCtx, jti)
		timedOut := callTimedOut(callCtx, err)
		cancel()

		if err == nil {
			return revoked, nil
		}

		lastErr = err
		if !timedOut {
			break
		}
	}

	return false, fmt.Errorf("%w: %v", ErrRegistryUnavailable, lastErr)
}

// callTimedOut reports whether a failed store or registry call hit its
// per-call deadline. The deadline is checked on the call's own context, not
// the returned error: providers and the Redis client wrap timeout errors in
// ways that do not always keep context.DeadlineExceeded in the chain.
func callTimedOut(callCtx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(callCtx.Err(), context.DeadlineExceeded)
}

func (s *Service) registryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.Store.Timeout)
}

func wrapStoreErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func formatEpoch(epoch uint64) string {
	return strconv.FormatUint(epoch, 10)
}
