package sessions

import (
	"context"
	"fmt"

	"github.com/tubeline/user-service/internal/models"
	"github.com/tubeline/user-service/internal/tokens"
	"github.com/tubeline/user-service/pkg/logger"
	"github.com/tubeline/user-service/pkg/metrics"
)

// Service issues, rotates and revokes token pairs. It is the only writer of
// the stored refresh token.
type Service struct {
	binding  Binding
	subjects SubjectLoader
	access   *tokens.Codec
	refresh  *tokens.Codec
}

func NewService(b Binding, subjects SubjectLoader, access, refresh *tokens.Codec) *Service {
	return &Service{binding: b, subjects: subjects, access: access, refresh: refresh}
}

// AccessCodec exposes the access-token codec for the authentication gate.
func (s *Service) AccessCodec() *tokens.Codec { return s.access }

// RefreshCodec exposes the refresh-token codec for the authentication gate.
func (s *Service) RefreshCodec() *tokens.Codec { return s.refresh }

func (s *Service) mint(u *models.User) (*Pair, error) {
	at, err := s.access.Issue(tokens.AccessClaims(u.ID, u.Username, u.FullName, u.Email))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	rt, err := s.refresh.Issue(tokens.RefreshClaims(u.ID))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &Pair{AccessToken: at, RefreshToken: rt}, nil
}

// IssuePair mints a new pair and stores its refresh token, replacing any
// previous one. Nothing is returned unless the write succeeded.
func (s *Service) IssuePair(ctx context.Context, u *models.User) (*Pair, error) {
	p, err := s.mint(u)
	if err != nil {
		return nil, err
	}
	if err := s.binding.SetRefreshToken(ctx, u.ID, p.RefreshToken); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	metrics.TokensIssued.WithLabelValues(string(tokens.Access)).Inc()
	metrics.TokensIssued.WithLabelValues(string(tokens.Refresh)).Inc()
	return p, nil
}

// Rotate exchanges a presented refresh token for a new pair. The stored token
// is swapped only if it still equals the presented one, so of two concurrent
// rotations with the same token exactly one succeeds.
func (s *Service) Rotate(ctx context.Context, presented string) (*Pair, *models.User, error) {
	claims, err := s.refresh.Verify(presented)
	if err != nil {
		metrics.Rotations.WithLabelValues("invalid").Inc()
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	u, err := s.subjects.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, nil, fmt.Errorf("load subject: %w", err)
	}
	if u == nil {
		metrics.Rotations.WithLabelValues("not_found").Inc()
		return nil, nil, ErrSubjectNotFound
	}
	stored, err := s.binding.RefreshToken(ctx, u.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load refresh token: %w", err)
	}
	if stored != presented {
		s.reuse(u.ID)
		return nil, nil, ErrRevokedOrStale
	}

	p, err := s.mint(u)
	if err != nil {
		return nil, nil, err
	}
	swapped, err := s.binding.SwapRefreshToken(ctx, u.ID, presented, p.RefreshToken)
	if err != nil {
		metrics.Rotations.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if !swapped {
		s.reuse(u.ID)
		return nil, nil, ErrRevokedOrStale
	}
	metrics.Rotations.WithLabelValues("rotated").Inc()
	metrics.TokensIssued.WithLabelValues(string(tokens.Access)).Inc()
	metrics.TokensIssued.WithLabelValues(string(tokens.Refresh)).Inc()
	return p, u.Public(), nil
}

func (s *Service) reuse(subjectID string) {
	metrics.Rotations.WithLabelValues("stale").Inc()
	logger.WithFields(logger.Fields{"subject": subjectID}).Warn("refresh token presented after rotation or revocation")
}

// Revoke clears the stored refresh token. Calling it again is a no-op.
func (s *Service) Revoke(ctx context.Context, subjectID string) error {
	if err := s.binding.ClearRefreshToken(ctx, subjectID); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
