package tokenward

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/averano/tokenward/token"
)

// IssuePair mints a fresh access/refresh pair for accountID. Both tokens
// carry the account's current security epoch and independent random jtis;
// nothing is persisted beyond the refresh-token tracking marker.
func (s *Service) IssuePair(ctx context.Context, accountID string) (*TokenPair, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}

	rec, err := s.getAccount(ctx, accountID)
	if err != nil {
		s.metricInc(MetricIssueFailure)
		return nil, err
	}
	if !rec.Active() {
		s.metricInc(MetricIssueFailure)
		return nil, ErrAccountNotFound
	}

	pair, err := s.issuePair(ctx, rec)
	if err != nil {
		return nil, err
	}

	s.metricInc(MetricIssueSuccess)
	s.emitAudit(ctx, auditEventIssue, true, rec.ID, "", nil, nil)

	return pair, nil
}

// Login verifies identifier+password against the stored digest and issues a
// pair. A missing account and a wrong password are indistinguishable to the
// caller; only an inactive account surfaces differently.
func (s *Service) Login(ctx context.Context, identifier, passwd string) (*TokenPair, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}

	rec, err := s.getAccountByIdentifier(ctx, identifier)
	if err != nil {
		s.metricInc(MetricLoginFailure)
		if Kind(err) == KindUserNotFound {
			s.emitAudit(ctx, auditEventLogin, false, "", "", ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.password.Verify(passwd, rec.PasswordDigest)
	if err != nil || !ok {
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLogin, false, rec.ID, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if !rec.Active() {
		s.metricInc(MetricLoginFailure)
		s.emitAudit(ctx, auditEventLogin, false, rec.ID, "", ErrAccountNotFound, nil)
		return nil, ErrAccountNotFound
	}

	pair, err := s.issuePair(ctx, rec)
	if err != nil {
		s.metricInc(MetricLoginFailure)
		return nil, err
	}

	s.metricInc(MetricLoginSuccess)
	s.emitAudit(ctx, auditEventLogin, true, rec.ID, "", nil, nil)

	return pair, nil
}

func (s *Service) issuePair(ctx context.Context, rec AccountRecord) (*TokenPair, error) {
	if s.config.Policy.MaxSessionsPerAccount > 0 {
		callCtx, cancel := s.registryCtx(ctx)
		count, err := s.registry.ActiveRefreshCount(callCtx, rec.ID)
		cancel()
		if err != nil {
			s.metricInc(MetricIssueFailure)
			return nil, wrapRegistryErr(err)
		}
		if count >= s.config.Policy.MaxSessionsPerAccount {
			s.metricInc(MetricSessionLimitExceeded)
			s.emitAudit(ctx, auditEventSessionLimit, false, rec.ID, "", ErrSessionLimitExceeded, nil)
			return nil, ErrSessionLimitExceeded
		}
	}

	now := time.Now()
	accessExpiry := now.Add(s.config.Policy.AccessTTL)
	refreshExpiry := now.Add(s.config.Policy.RefreshTTL)
	refreshJTI := uuid.NewString()

	access, err := s.codec.Encode(token.Payload{
		Subject:   rec.ID,
		Type:      token.TypeAccess,
		JTI:       uuid.NewString(),
		Epoch:     rec.SecurityEpoch,
		IssuedAt:  now,
		ExpiresAt: accessExpiry,
	})
	if err != nil {
		s.metricInc(MetricIssueFailure)
		return nil, err
	}

	refresh, err := s.codec.Encode(token.Payload{
		Subject:   rec.ID,
		Type:      token.TypeRefresh,
		JTI:       refreshJTI,
		Epoch:     rec.SecurityEpoch,
		IssuedAt:  now,
		ExpiresAt: refreshExpiry,
	})
	if err != nil {
		s.metricInc(MetricIssueFailure)
		return nil, err
	}

	callCtx, cancel := s.registryCtx(ctx)
	err = s.registry.TrackIssued(callCtx, rec.ID, refreshJTI, s.config.Policy.RefreshTTL)
	cancel()
	if err != nil {
		s.metricInc(MetricIssueFailure)
		return nil, wrapRegistryErr(err)
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}
