package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tubeline/user-service/internal/config"
	"github.com/tubeline/user-service/internal/models"
	"github.com/tubeline/user-service/internal/sessions"
	"github.com/tubeline/user-service/internal/storage"
	"github.com/tubeline/user-service/internal/tokens"
	"github.com/tubeline/user-service/internal/users"
	"github.com/tubeline/user-service/internal/validation"
	"github.com/tubeline/user-service/pkg/apperr"
	"github.com/tubeline/user-service/pkg/logger"
	"github.com/tubeline/user-service/pkg/middleware"
	"github.com/tubeline/user-service/pkg/response"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

// AccessDenier records access tokens that must stop working before expiry.
type AccessDenier interface {
	Deny(ctx context.Context, tokenID string, ttl time.Duration) error
}

// CookieOptions controls the auth cookies.
type CookieOptions struct {
	Secure     bool
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// UserHandler holds dependencies
type UserHandler struct {
	users    *users.Service
	denylist AccessDenier
	cookies  CookieOptions
}

// NewUserHandler builds the handler. denylist may be nil.
func NewUserHandler(u *users.Service, denylist AccessDenier, cookies CookieOptions) *UserHandler {
	return &UserHandler{users: u, denylist: denylist, cookies: cookies}
}

// Limiter returns the rate-limit middleware for a named route.
type Limiter func(route string) gin.HandlerFunc

// Register routes under /users
func (h *UserHandler) Register(rg *gin.RouterGroup, gate *middleware.Gate, limit Limiter) {
	u := rg.Group("/users")
	u.POST("/register", limit(config.RouteRegister), h.RegisterUser)
	u.POST("/login", limit(config.RouteLogin), h.Login)
	u.GET("/refresh-token", limit(config.RouteRefresh), h.Refresh)
	u.POST("/refresh-token", limit(config.RouteRefresh), h.Refresh)

	access := gate.Require(middleware.AccessSources())
	u.GET("/logout", limit(config.RouteLogout), gate.Require(middleware.AccessOrRefreshSources()), h.Logout)
	u.PUT("/change-password", limit(config.RouteChangePassword), access, h.ChangePassword)
	for _, p := range []string{"/profile", "/get-user"} {
		u.GET(p, limit(config.RouteProfile), access, h.Profile)
	}
	for _, p := range []string{"/update-profile", "/update-account"} {
		u.PUT(p, limit(config.RouteUpdateProfile), access, h.UpdateProfile)
	}
	for _, p := range []string{"/update-media", "/update-avatar-cover"} {
		u.PUT(p, limit(config.RouteUpdateMedia), access, h.UpdateMedia)
	}
}

type registerForm struct {
	FullName string `form:"fullName" json:"fullName"`
	Email    string `form:"email" json:"email"`
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// RegisterUser handles multipart sign-up with a required avatar and an
// optional cover image.
func (h *UserHandler) RegisterUser(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		response.Fail(c, bindError(err))
		return
	}
	avatar, closeAvatar, err := formUpload(c, "avatar")
	if err != nil {
		response.Fail(c, err)
		return
	}
	defer closeAvatar()
	cover, closeCover, err := formUpload(c, "coverImage")
	if err != nil {
		response.Fail(c, err)
		return
	}
	defer closeCover()

	u, err := h.users.Register(c.Request.Context(), users.RegisterInput{
		FullName:   form.FullName,
		Email:      form.Email,
		Username:   form.Username,
		Password:   form.Password,
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, u, "User registered successfully")
}

type authPayload struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func (h *UserHandler) Login(c *gin.Context) {
	var in users.LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Fail(c, bindError(err))
		return
	}
	u, pair, err := h.users.Login(c.Request.Context(), in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.setTokenCookies(c, pair)
	response.OK(c, http.StatusOK, authPayload{User: u, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, "User logged in successfully")
}

// Refresh rotates the refresh token found in the cookie, the
// X-Refresh-Token header, the JSON body or a bearer header, in that order.
func (h *UserHandler) Refresh(c *gin.Context) {
	raw, _, ok := middleware.ExtractToken(c, middleware.RefreshSources())
	if !ok {
		response.Fail(c, apperr.Unauthenticated("Unauthorized request"))
		return
	}
	u, pair, err := h.users.Refresh(c.Request.Context(), raw)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthenticated {
			h.clearTokenCookies(c)
		}
		response.Fail(c, err)
		return
	}
	h.setTokenCookies(c, pair)
	response.OK(c, http.StatusOK, authPayload{User: u, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, "Access token refreshed")
}

// Logout revokes the refresh token, denies the presented access token for
// the rest of its lifetime and clears both cookies.
func (h *UserHandler) Logout(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.users.Logout(c.Request.Context(), u.ID); err != nil {
		response.Fail(c, err)
		return
	}
	if claims, class, ok := middleware.CurrentClaims(c); ok && class == tokens.Access && h.denylist != nil {
		if claims.ExpiresAt != nil {
			ttl := time.Until(claims.ExpiresAt.Time)
			if err := h.denylist.Deny(c.Request.Context(), claims.ID, ttl); err != nil {
				logger.WithFields(logger.Fields{"user_id": u.ID}).Warnf("access token not denylisted: %v", err)
			}
		}
	}
	h.clearTokenCookies(c)
	response.OK(c, http.StatusOK, gin.H{}, "User logged out")
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}
	var in users.ChangePasswordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Fail(c, bindError(err))
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), u.ID, in); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{}, "Password changed successfully")
}

// currentUser returns the user attached by the gate and answers 401 when
// the route was mounted without one.
func currentUser(c *gin.Context) (*models.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		response.Fail(c, apperr.Unauthenticated("Unauthorized request"))
		return nil, false
	}
	return u, true
}

// Profile returns the user loaded by the authentication gate.
func (h *UserHandler) Profile(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}
	response.OK(c, http.StatusOK, u, "User fetched successfully")
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}
	var in users.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Fail(c, bindError(err))
		return
	}
	updated, err := h.users.UpdateProfile(c.Request.Context(), u.ID, in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, updated, "Account details updated successfully")
}

func (h *UserHandler) UpdateMedia(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		return
	}
	if _, err := c.MultipartForm(); err != nil {
		response.Fail(c, apperr.Wrap(apperr.KindValidation, "Invalid multipart form", err))
		return
	}
	avatar, closeAvatar, err := formUpload(c, "avatar")
	if err != nil {
		response.Fail(c, err)
		return
	}
	defer closeAvatar()
	cover, closeCover, err := formUpload(c, "coverImage")
	if err != nil {
		response.Fail(c, err)
		return
	}
	defer closeCover()

	updated, err := h.users.UpdateMedia(c.Request.Context(), u.ID, users.MediaInput{Avatar: avatar, CoverImage: cover})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, updated, "Media updated successfully")
}

// formUpload opens an optional multipart file. A missing field yields a nil
// upload and a no-op closer.
func formUpload(c *gin.Context, field string) (*storage.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, func() {}, nil
		}
		return nil, func() {}, apperr.Wrap(apperr.KindValidation, "Invalid "+field+" upload", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, apperr.Wrap(apperr.KindInternal, "open upload", err)
	}
	return toUpload(fh, f), func() { _ = f.Close() }, nil
}

func toUpload(fh *multipart.FileHeader, f multipart.File) *storage.Upload {
	return &storage.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}
}

func (h *UserHandler) setTokenCookies(c *gin.Context, p *sessions.Pair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessCookie, p.AccessToken, int(h.cookies.AccessTTL.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, p.RefreshToken, int(h.cookies.RefreshTTL.Seconds()), "/", h.cookies.Domain, h.cookies.Secure, true)
}

func (h *UserHandler) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
}

// bindError turns a binding failure into a validation error. Oversized
// bodies are reported as such.
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Wrap(apperr.KindValidation, "Request body too large", err)
	}
	if verr := validation.Translate(err); apperr.KindOf(verr) == apperr.KindValidation {
		return verr
	}
	return apperr.Wrap(apperr.KindValidation, "Invalid request body", err)
}
