package sessions

import (
	"context"

	"github.com/tubeline/user-service/internal/models"
	"github.com/tubeline/user-service/pkg/apperr"
)

// Pair is a freshly minted access/refresh token pair.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Binding persists the single currently-valid refresh token per subject.
// SwapRefreshToken must be a compare-and-swap on the exact stored string.
type Binding interface {
	RefreshToken(ctx context.Context, subjectID string) (string, error)
	SetRefreshToken(ctx context.Context, subjectID, token string) error
	SwapRefreshToken(ctx context.Context, subjectID, expected, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, subjectID string) error
}

// SubjectLoader loads the subject a refresh token was issued to.
type SubjectLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

var (
	ErrInvalidRefreshToken = apperr.Unauthenticated("invalid refresh token")
	ErrSubjectNotFound     = apperr.Unauthenticated("user not found")
	ErrRevokedOrStale      = apperr.Unauthenticated("refresh token is expired or used")
	ErrPersistence         = &apperr.Error{Kind: apperr.KindPersistence, Message: "failed to persist session"}
)
