package tokens

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueVerify_RoundTripClaims(t *testing.T) {
	secret := []byte("test-secret-32-bytes-should-be-long-enough")
	in := AccessClaims("user-123", "alice", "Alice Doe", "alice@example.com")

	tok, err := Issue(in, secret, 2*time.Minute)
	require.NoError(t, err)

	got, err := Verify(tok, secret)
	require.NoError(t, err)
	require.Equal(t, "user-123", got.Subject)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, "Alice Doe", got.FullName)
	require.Equal(t, "alice@example.com", got.Email)
	require.NotEmpty(t, got.ID)
}

func TestRefreshClaims_CarryOnlySubject(t *testing.T) {
	secret := []byte("refresh-secret-xxxxxxxxxxxxxxxxxxxx")
	tok, err := Issue(RefreshClaims("user-9"), secret, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	require.NotContains(t, string(payload), "email")
	require.NotContains(t, string(payload), "username")
	require.Contains(t, string(payload), `"sub":"user-9"`)
}

func TestCodec_ExpiresAfterTTL(t *testing.T) {
	c := MustCodec(Access, "another-secret-32-bytes-longgggg", time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }

	tok, err := c.Issue(AccessClaims("u2", "x", "X", "x@x.io"))
	require.NoError(t, err)

	c.now = func() time.Time { return base.Add(59 * time.Second) }
	_, err = c.Verify(tok)
	require.NoError(t, err)

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = c.Verify(tok)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerify_WrongSecretIsInvalidSignature(t *testing.T) {
	tok, err := Issue(AccessClaims("u3", "bob", "Bob", "bob@example.com"), []byte("secret-one-32-bytes-xxxxxxxxxxxxxxxx"), time.Minute)
	require.NoError(t, err)

	_, err = Verify(tok, []byte("different-secret-xxxxxxxxxxxxxxxx"))
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_AccessAndRefreshSecretsAreIndependent(t *testing.T) {
	access := MustCodec(Access, "access-secret-xxxxxxxxxxxxxxxxxxxxx", time.Minute)
	refresh := MustCodec(Refresh, "refresh-secret-xxxxxxxxxxxxxxxxxxxx", time.Hour)

	rt, err := refresh.Issue(RefreshClaims("u4"))
	require.NoError(t, err)

	_, err = access.Verify(rt)
	require.ErrorIs(t, err, ErrInvalidSignature)
	_, err = refresh.Verify(rt)
	require.NoError(t, err)
}

func TestVerify_Malformed(t *testing.T) {
	_, err := Verify("not.a.jwt", []byte("x"))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Verify("", []byte("x"))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_AlgNoneRejected(t *testing.T) {
	headerEnc := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payloadEnc := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u-none","exp":9999999999}`))
	tok := headerEnc + "." + payloadEnc + "."

	_, err := Verify(tok, []byte("x"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrMalformed))
}

func TestVerify_TamperedPayload(t *testing.T) {
	secret := []byte("tamper-test-secret-32-bytes-xxxxxxx")
	tok, err := Issue(AccessClaims("user-t", "tamper", "Tamper", "t@example.com"), secret, 5*time.Minute)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payload), "user-t", "attacker", 1)))

	_, err = Verify(strings.Join(parts, "."), secret)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestIssue_SameSecondTokensDiffer(t *testing.T) {
	c := MustCodec(Refresh, "refresh-secret-xxxxxxxxxxxxxxxxxxxx", time.Hour)
	fixed := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return fixed }

	a, err := c.Issue(RefreshClaims("u5"))
	require.NoError(t, err)
	b, err := c.Issue(RefreshClaims("u5"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	_, err := NewCodec(Access, "", time.Minute)
	require.Error(t, err)
	require.Panics(t, func() { MustCodec(Refresh, "", time.Hour) })
}
