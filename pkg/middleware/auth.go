package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/tubeline/user-service/internal/models"
	"github.com/tubeline/user-service/internal/tokens"
	"github.com/tubeline/user-service/pkg/apperr"
	"github.com/tubeline/user-service/pkg/logger"
	"github.com/tubeline/user-service/pkg/metrics"
	"github.com/tubeline/user-service/pkg/response"
)

const (
	userKey   = "user"
	claimsKey = "tokenClaims"
	classKey  = "tokenClass"
)

// errUnauthorized is the only message a rejected request ever sees.
var errUnauthorized = apperr.Unauthenticated("Unauthorized request")

// TokenSource extracts one credential of a known class from a request.
type TokenSource struct {
	Name    string
	Class   tokens.Class
	Extract func(c *gin.Context) string
}

var (
	AccessCookie  = TokenSource{Name: "cookie:accessToken", Class: tokens.Access, Extract: cookie("accessToken")}
	BearerHeader  = TokenSource{Name: "header:Authorization", Class: tokens.Access, Extract: bearer}
	RefreshCookie = TokenSource{Name: "cookie:refreshToken", Class: tokens.Refresh, Extract: cookie("refreshToken")}
	RefreshHeader = TokenSource{Name: "header:X-Refresh-Token", Class: tokens.Refresh, Extract: header("X-Refresh-Token")}
	RefreshBody   = TokenSource{Name: "body:refreshToken", Class: tokens.Refresh, Extract: bodyRefreshToken}
)

// AccessSources is the precedence for routes that only take access tokens.
func AccessSources() []TokenSource {
	return []TokenSource{AccessCookie, BearerHeader}
}

// AccessOrRefreshSources prefers access tokens and falls back to the
// refresh token for routes that accept it.
func AccessOrRefreshSources() []TokenSource {
	return []TokenSource{AccessCookie, BearerHeader, RefreshCookie, RefreshHeader, RefreshBody}
}

// RefreshSources is the precedence used by the refresh endpoint. A bearer
// header is read as a refresh token there.
func RefreshSources() []TokenSource {
	bearerRefresh := BearerHeader
	bearerRefresh.Class = tokens.Refresh
	return []TokenSource{RefreshCookie, RefreshHeader, RefreshBody, bearerRefresh}
}

// ExtractToken returns the first non-empty credential in sources order.
func ExtractToken(c *gin.Context, sources []TokenSource) (string, TokenSource, bool) {
	for _, s := range sources {
		if tok := strings.TrimSpace(s.Extract(c)); tok != "" {
			return tok, s, true
		}
	}
	return "", TokenSource{}, false
}

func cookie(name string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		v, err := c.Cookie(name)
		if err != nil {
			return ""
		}
		return v
	}
}

func header(name string) func(*gin.Context) string {
	return func(c *gin.Context) string { return c.GetHeader(name) }
}

func bearer(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return auth[7:]
}

// bodyRefreshToken reads refreshToken from a JSON body. The body is cached by
// ShouldBindBodyWith so handlers can still bind it.
func bodyRefreshToken(c *gin.Context) string {
	if c.Request.Body == nil || c.ContentType() != binding.MIMEJSON {
		return ""
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		return ""
	}
	return body.RefreshToken
}

// ProfileLoader loads a subject without its password hash and refresh token.
type ProfileLoader interface {
	FindProfileByID(ctx context.Context, id string) (*models.User, error)
}

// RefreshLookup returns the refresh token currently stored for a subject.
// sessions.Binding satisfies it.
type RefreshLookup interface {
	RefreshToken(ctx context.Context, subjectID string) (string, error)
}

// AccessDenylist reports access tokens revoked before expiry.
type AccessDenylist interface {
	IsDenied(ctx context.Context, tokenID string) (bool, error)
}

// Gate authenticates requests against the token codecs and the user store.
type Gate struct {
	access   *tokens.Codec
	refresh  *tokens.Codec
	users    ProfileLoader
	sessions RefreshLookup
	denylist AccessDenylist
}

// NewGate builds a gate. denylist may be nil. With a nil sessions lookup
// refresh tokens are never accepted.
func NewGate(access, refresh *tokens.Codec, users ProfileLoader, sessions RefreshLookup, denylist AccessDenylist) *Gate {
	return &Gate{access: access, refresh: refresh, users: users, sessions: sessions, denylist: denylist}
}

func (g *Gate) codec(class tokens.Class) *tokens.Codec {
	if class == tokens.Refresh {
		return g.refresh
	}
	return g.access
}

// Require returns a Gin middleware that admits only requests carrying a
// valid credential from sources. The loaded user is available through
// CurrentUser.
func (g *Gate) Require(sources []TokenSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, src, ok := ExtractToken(c, sources)
		if !ok {
			g.reject(c, "missing credential", nil)
			return
		}

		claims, err := g.codec(src.Class).Verify(raw)
		if err != nil {
			g.reject(c, "invalid "+string(src.Class)+" token from "+src.Name, err)
			return
		}

		// a refresh token authenticates only while it is the stored one
		if src.Class == tokens.Refresh {
			if g.sessions == nil {
				g.reject(c, "refresh tokens not accepted", nil)
				return
			}
			stored, err := g.sessions.RefreshToken(c.Request.Context(), claims.Subject)
			if err != nil {
				response.Fail(c, apperr.Wrap(apperr.KindInternal, "session lookup failed", err))
				return
			}
			if stored != raw {
				g.reject(c, "refresh token rotated or revoked", nil)
				return
			}
		}

		if src.Class == tokens.Access && g.denylist != nil {
			denied, err := g.denylist.IsDenied(c.Request.Context(), claims.ID)
			if err != nil {
				response.Fail(c, apperr.Wrap(apperr.KindInternal, "denylist lookup failed", err))
				return
			}
			if denied {
				g.reject(c, "access token was logged out", nil)
				return
			}
		}

		u, err := g.users.FindProfileByID(c.Request.Context(), claims.Subject)
		if err != nil {
			response.Fail(c, apperr.Wrap(apperr.KindInternal, "load user", err))
			return
		}
		if u == nil {
			g.reject(c, "subject not found", nil)
			return
		}

		c.Set(userKey, u.Public())
		c.Set(claimsKey, claims)
		c.Set(classKey, string(src.Class))
		c.Next()
	}
}

func (g *Gate) reject(c *gin.Context, reason string, err error) {
	metrics.AuthRejected.Inc()
	fields := logger.Fields{"path": c.FullPath(), "reason": reason}
	if err != nil {
		fields["error"] = err.Error()
	}
	logger.WithFields(fields).Debug("authentication rejected")
	response.Fail(c, errUnauthorized)
}

// CurrentUser returns the user attached by Gate.Require.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

// CurrentClaims returns the verified claims and their class.
func CurrentClaims(c *gin.Context) (*tokens.Claims, tokens.Class, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, "", false
	}
	claims, ok := v.(*tokens.Claims)
	if !ok {
		return nil, "", false
	}
	return claims, tokens.Class(c.GetString(classKey)), true
}
