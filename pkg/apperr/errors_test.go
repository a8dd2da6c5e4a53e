package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfFollowsWrapChain(t *testing.T) {
	base := Conflict("Email or Username already exists")
	wrapped := fmt.Errorf("users.Register: %w", base)

	require.Equal(t, KindConflict, KindOf(wrapped))
	require.Equal(t, http.StatusConflict, HTTPStatus(KindOf(wrapped)))
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:      http.StatusBadRequest,
		KindUnauthenticated: http.StatusUnauthorized,
		KindNotFound:        http.StatusNotFound,
		KindConflict:        http.StatusConflict,
		KindRateLimited:     http.StatusTooManyRequests,
		KindPersistence:     http.StatusInternalServerError,
		KindUpstream:        http.StatusBadGateway,
		KindInternal:        http.StatusInternalServerError,
	}
	for k, want := range cases {
		require.Equal(t, want, HTTPStatus(k), k.String())
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	cause := errors.New("connection refused 10.0.0.5:27017")
	err := Wrap(KindPersistence, "failed to store refresh token", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, "Internal Server Error", PublicMessage(err))
	require.Equal(t, "Internal Server Error", PublicMessage(cause))
	require.Equal(t, "Avatar is required", PublicMessage(Validation("Avatar is required")))
}
