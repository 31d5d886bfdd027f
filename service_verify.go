package tokenward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/averano/tokenward/token"
)

// Verify checks a presented token against the codec, the revocation
// registry, and the credential store's current state, in that order:
//
//  1. signature and structural decode (tampered/undecodable → ErrTokenInvalid,
//     elapsed TTL → ErrTokenExpired / ErrRefreshExpired)
//  2. token type (a refresh token where an access token is required is
//     ErrTokenInvalid, and vice versa)
//  3. revocation registry lookup → ErrTokenRevoked
//  4. account existence and active flag → ErrAccountNotFound
//  5. security epoch match → ErrTokenExpired (a stale session is
//     indistinguishable from natural expiry for the caller)
//
// Registry or store outages abort verification with ErrRegistryUnavailable /
// ErrStoreUnavailable; a token is never accepted on uncertainty.
func (s *Service) Verify(ctx context.Context, tokenStr string, expected token.Type) (*Identity, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}
	if s.metrics != nil && s.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			s.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}()
	}

	id, _, err := s.verify(ctx, tokenStr, expected)
	if err != nil {
		return nil, err
	}

	s.metricInc(MetricVerifySuccess)
	return id, nil
}

// verify is the shared validity gate; Refresh uses it directly to reuse the
// fetched account record for issuance.
func (s *Service) verify(ctx context.Context, tokenStr string, expected token.Type) (*Identity, AccountRecord, error) {
	payload, err := s.codec.Decode(tokenStr)
	if err != nil {
		return nil, AccountRecord{}, s.mapDecodeError(err, expected)
	}

	if payload.Type != expected {
		s.metricInc(MetricVerifyInvalid)
		return nil, AccountRecord{}, ErrTokenInvalid
	}

	revoked, err := s.isRevoked(ctx, payload.JTI)
	if err != nil {
		s.metricInc(MetricVerifyUnavailable)
		return nil, AccountRecord{}, err
	}
	if revoked {
		s.metricInc(MetricVerifyRevoked)
		return nil, AccountRecord{}, ErrTokenRevoked
	}

	rec, err := s.getAccount(ctx, payload.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.metricInc(MetricVerifyAccountMissing)
			return nil, AccountRecord{}, ErrAccountNotFound
		}
		s.metricInc(MetricVerifyUnavailable)
		return nil, AccountRecord{}, err
	}
	if !rec.Active() {
		s.metricInc(MetricVerifyAccountMissing)
		return nil, AccountRecord{}, ErrAccountNotFound
	}

	if payload.Epoch != rec.SecurityEpoch {
		s.metricInc(MetricVerifyExpired)
		s.emitAudit(ctx, auditEventEpochMismatch, false, rec.ID, payload.JTI, nil, func() map[string]string {
			return map[string]string{
				"token_epoch":   formatEpoch(payload.Epoch),
				"current_epoch": formatEpoch(rec.SecurityEpoch),
			}
		})
		return nil, AccountRecord{}, s.expiredError(expected)
	}

	return &Identity{
		AccountID: payload.Subject,
		TokenID:   payload.JTI,
		TokenType: payload.Type,
		Epoch:     payload.Epoch,
		ExpiresAt: payload.ExpiresAt,
	}, rec, nil
}

func (s *Service) mapDecodeError(err error, expected token.Type) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		s.metricInc(MetricVerifyExpired)
		return s.expiredError(expected)
	default:
		// ErrBadSignature and ErrMalformed collapse into one caller-facing
		// kind; the distinction only matters for logs.
		s.metricInc(MetricVerifyInvalid)
		return ErrTokenInvalid
	}
}

// expiredError picks the surfaced flavor of "get a new token": refresh-token
// expiry carries its own message so clients know re-login is the only way
// forward.
func (s *Service) expiredError(expected token.Type) error {
	if expected == token.TypeRefresh {
		return ErrRefreshExpired
	}
	return ErrTokenExpired
}

func wrapRegistryErr(err error) error {
	return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
}
