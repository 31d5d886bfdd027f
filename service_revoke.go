package tokenward

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/averano/tokenward/token"
)

// Revoke records the presented token's jti in the revocation registry until
// the token would have expired anyway. It deliberately skips the full
// validity gate: logout of a near-expired, epoch-stale, or already-revoked
// token must still succeed. A token that can no longer pass verification is
// a no-op success, as is revoking the same token twice.
func (s *Service) Revoke(ctx context.Context, tokenStr string) error {
	if s == nil {
		return ErrServiceNotReady
	}

	payload, err := s.codec.DecodeExpired(tokenStr)
	if err != nil {
		// Tampered or undecodable input is still rejected; revocation only
		// skips the liveness checks, not the signature.
		return ErrTokenInvalid
	}

	// The codec accepts tokens up to Policy.Leeway past exp, so a token is
	// only treated as expired here once that window has elapsed too. Inside
	// the window a registry entry must still be written or a verifier would
	// keep accepting the token after a successful logout.
	remaining := time.Until(payload.ExpiresAt)
	if remaining+s.config.Policy.Leeway <= 0 {
		s.metricInc(MetricRevokeExpiredNoop)
		return nil
	}

	callCtx, cancel := s.registryCtx(ctx)
	err = s.registry.Revoke(callCtx, payload.JTI, remaining+s.config.Policy.Leeway)
	cancel()
	if err != nil {
		// Safe to retry: Revoke is idempotent.
		return wrapRegistryErr(err)
	}

	if payload.Type == token.TypeRefresh {
		callCtx, cancel := s.registryCtx(ctx)
		if err := s.registry.Untrack(callCtx, payload.Subject, payload.JTI); err != nil {
			log.Print("tokenward: untracking revoked refresh token failed")
		}
		cancel()
	}

	s.metricInc(MetricRevoke)
	s.emitAudit(ctx, auditEventRevoke, true, payload.Subject, payload.JTI, nil, nil)

	return nil
}

// RevokeAll logs the account out everywhere by bumping its security epoch:
// every outstanding token carries the old epoch and fails verification from
// now on, without being enumerated. O(1) in the number of live tokens.
func (s *Service) RevokeAll(ctx context.Context, accountID string) error {
	if s == nil {
		return ErrServiceNotReady
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.Store.Timeout)
	newEpoch, err := s.accounts.BumpSecurityEpoch(callCtx, accountID)
	cancel()
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return wrapStoreErr(err)
	}

	callCtx, cancel = s.registryCtx(ctx)
	if err := s.registry.ClearSubject(callCtx, accountID); err != nil {
		log.Print("tokenward: clearing issued-token index failed")
	}
	cancel()

	s.metricInc(MetricRevokeAll)
	s.emitAudit(ctx, auditEventRevokeAll, true, accountID, "", nil, func() map[string]string {
		return map[string]string{
			"new_epoch": formatEpoch(newEpoch),
		}
	})

	return nil
}
