package tokenward

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/averano/tokenward/token"
)

// Refresh validates a refresh token and exchanges it for a new pair. With
// rotation enabled (the default) the presented token's jti is revoked
// atomically before the new pair is minted: of any number of concurrent
// Refresh calls on the same token, exactly one claims the jti and wins; the
// rest observe it as revoked and fail with ErrTokenRevoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}

	id, rec, err := s.verify(ctx, refreshToken, token.TypeRefresh)
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		if errors.Is(err, ErrTokenRevoked) {
			s.metricInc(MetricRefreshReuseDetected)
			// A revoked verdict implies the signature checked out, so the
			// payload is recoverable and the reuse event names the account
			// and jti just like the post-claim variant below.
			var accountID, tokenID string
			if payload, decErr := s.codec.DecodeExpired(refreshToken); decErr == nil {
				accountID, tokenID = payload.Subject, payload.JTI
			}
			s.emitAudit(ctx, auditEventRefreshReuse, false, accountID, tokenID, ErrTokenRevoked, nil)
		}
		return nil, err
	}

	if s.config.Policy.RotateRefresh {
		// Remaining lifetime plus leeway so the revocation entry outlives
		// every clock-skewed verification of the old token.
		ttl := time.Until(id.ExpiresAt) + s.config.Policy.Leeway

		callCtx, cancel := s.registryCtx(ctx)
		claimed, err := s.registry.Claim(callCtx, id.TokenID, ttl)
		cancel()
		if err != nil {
			s.metricInc(MetricRefreshFailure)
			return nil, wrapRegistryErr(err)
		}
		if !claimed {
			// Lost the rotation race: someone else already revoked this jti.
			s.metricInc(MetricRefreshFailure)
			s.metricInc(MetricRefreshReuseDetected)
			s.emitAudit(ctx, auditEventRefreshReuse, false, rec.ID, id.TokenID, ErrTokenRevoked, nil)
			return nil, ErrTokenRevoked
		}

		callCtx, cancel = s.registryCtx(ctx)
		if err := s.registry.Untrack(callCtx, rec.ID, id.TokenID); err != nil {
			log.Print("tokenward: untracking rotated refresh token failed")
		}
		cancel()
	}

	pair, err := s.issuePair(ctx, rec)
	if err != nil {
		s.metricInc(MetricRefreshFailure)
		return nil, err
	}

	s.metricInc(MetricRefreshSuccess)
	s.emitAudit(ctx, auditEventRefresh, true, rec.ID, id.TokenID, nil, nil)

	return pair, nil
}
