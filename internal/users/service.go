package users

import (
	"context"
	"errors"
	"strings"

	"github.com/tubeline/user-service/internal/models"
	"github.com/tubeline/user-service/internal/password"
	"github.com/tubeline/user-service/internal/sessions"
	"github.com/tubeline/user-service/internal/storage"
	"github.com/tubeline/user-service/internal/validation"
	"github.com/tubeline/user-service/pkg/apperr"
	"github.com/tubeline/user-service/pkg/logger"
)

var (
	ErrUserExists        = apperr.Conflict("Email or Username already exists")
	ErrUserNotFound      = apperr.NotFound("User does not exist")
	ErrInvalidCredential = apperr.Unauthenticated("Invalid user credentials")
	ErrWrongOldPassword  = apperr.Validation("Invalid old password")
	ErrAvatarRequired    = apperr.Validation("Avatar is required")
	ErrNoMedia           = apperr.Validation("Avatar or cover image is required")
	ErrLoginIdentifier   = apperr.Validation("Username or email is required")
)

// SessionIssuer is the part of the token lifecycle manager the service drives.
type SessionIssuer interface {
	IssuePair(ctx context.Context, u *models.User) (*sessions.Pair, error)
	Rotate(ctx context.Context, presented string) (*sessions.Pair, *models.User, error)
	Revoke(ctx context.Context, subjectID string) error
}

// Service encapsulates user-related business logic
type Service struct {
	repo     UserRepository
	sessions SessionIssuer
	media    storage.Media
	hasher   password.Hasher
}

func NewService(r UserRepository, s SessionIssuer, m storage.Media, h password.Hasher) *Service {
	return &Service{repo: r, sessions: s, media: m, hasher: h}
}

type RegisterInput struct {
	FullName   string `json:"fullName" validate:"required,min=3"`
	Email      string `json:"email" validate:"required,email"`
	Username   string `json:"username" validate:"required,min=3"`
	Password   string `json:"password" validate:"required,strongpassword"`
	Avatar     *storage.Upload
	CoverImage *storage.Upload
}

func (in *RegisterInput) normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
}

// Register validates the input, uploads the media and creates the user.
// Uploaded media is removed again if anything after the upload fails.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Avatar == nil {
		return nil, ErrAvatarRequired
	}

	existing, err := s.repo.FindByIdentifier(ctx, Lookup{Username: in.Username, Email: in.Email})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "lookup user", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, hashError(err)
	}

	avatar, err := s.media.Store(ctx, *in.Avatar)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "Avatar upload failed", err)
	}
	uploaded := []*storage.Asset{avatar}

	var cover *storage.Asset
	if in.CoverImage != nil {
		cover, err = s.media.Store(ctx, *in.CoverImage)
		if err != nil {
			return nil, s.compensate(ctx, apperr.Wrap(apperr.KindUpstream, "Cover image upload failed", err), uploaded)
		}
		uploaded = append(uploaded, cover)
	}

	u := &models.User{
		Username: in.Username,
		Email:    in.Email,
		FullName: in.FullName,
		Password: digest,
		Avatar:   avatar.URL,
		AvatarID: avatar.ReferenceID,
	}
	if cover != nil {
		u.CoverImage = cover.URL
		u.CoverImageID = cover.ReferenceID
	}

	created, err := s.repo.Create(ctx, u)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, s.compensate(ctx, ErrUserExists, uploaded)
		}
		return nil, s.compensate(ctx, apperr.Wrap(apperr.KindPersistence, "User creation failed", err), uploaded)
	}
	logger.WithFields(logger.Fields{"user_id": created.ID}).Info("user registered")
	return created.Public(), nil
}

// compensate removes assets uploaded by a failed operation. Cleanup failures
// are joined to cause so neither is lost.
func (s *Service) compensate(ctx context.Context, cause error, assets []*storage.Asset) error {
	var errs []error
	for _, a := range assets {
		if a == nil || a.ReferenceID == "" {
			continue
		}
		if err := s.media.Remove(context.WithoutCancel(ctx), a.ReferenceID); err != nil {
			logger.WithFields(logger.Fields{"reference_id": a.ReferenceID}).Errorf("media cleanup failed: %v", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return cause
	}
	return errors.Join(cause, apperr.Wrap(apperr.KindUpstream, "media cleanup failed", errors.Join(errs...)))
}

type LoginInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks the credentials and issues a new token pair.
func (s *Service) Login(ctx context.Context, in LoginInput) (*models.User, *sessions.Pair, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" && email == "" {
		return nil, nil, ErrLoginIdentifier
	}
	if in.Password == "" {
		return nil, nil, apperr.Validation(validation.MsgRequired)
	}

	u, err := s.repo.FindByIdentifier(ctx, Lookup{Username: username, Email: email})
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, "lookup user", err)
	}
	if u == nil {
		return nil, nil, ErrUserNotFound
	}
	if !s.hasher.Compare(in.Password, u.Password) {
		return nil, nil, ErrInvalidCredential
	}

	pair, err := s.sessions.IssuePair(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	return u.Public(), pair, nil
}

// Logout revokes the user's refresh token.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.sessions.Revoke(ctx, userID)
}

// Refresh rotates a presented refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.User, *sessions.Pair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, nil, apperr.Unauthenticated("Unauthorized request")
	}
	pair, u, err := s.sessions.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,strongpassword"`
}

// ChangePassword replaces the password after checking the old one. The
// current session stays valid.
func (s *Service) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "load user", err)
	}
	if u == nil {
		return ErrUserNotFound
	}
	if !s.hasher.Compare(in.OldPassword, u.Password) {
		return ErrWrongOldPassword
	}
	digest, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return hashError(err)
	}
	if _, err := s.repo.UpdateFields(ctx, userID, Update{Password: &digest}); err != nil {
		return s.updateError(err)
	}
	return nil
}

// Profile returns the user without password hash and refresh token.
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.repo.FindProfileByID(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load user", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u.Public(), nil
}

type ProfileInput struct {
	FullName string `json:"fullName" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
}

// UpdateProfile changes the full name and email.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.repo.UpdateFields(ctx, userID, Update{FullName: &in.FullName, Email: &in.Email})
	if err != nil {
		return nil, s.updateError(err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u.Public(), nil
}

type MediaInput struct {
	Avatar     *storage.Upload
	CoverImage *storage.Upload
}

// UpdateMedia replaces the avatar and/or cover image. Each successful upload
// sets its field, whether or not the user had one before. Old assets are
// removed only after the new references are stored.
func (s *Service) UpdateMedia(ctx context.Context, userID string, in MediaInput) (*models.User, error) {
	if in.Avatar == nil && in.CoverImage == nil {
		return nil, ErrNoMedia
	}
	current, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "load user", err)
	}
	if current == nil {
		return nil, ErrUserNotFound
	}

	var upd Update
	var uploaded []*storage.Asset
	var stale []string
	if in.Avatar != nil {
		a, err := s.media.Store(ctx, *in.Avatar)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUpstream, "Avatar upload failed", err)
		}
		uploaded = append(uploaded, a)
		upd.Avatar, upd.AvatarID = &a.URL, &a.ReferenceID
		stale = append(stale, current.AvatarID)
	}
	if in.CoverImage != nil {
		a, err := s.media.Store(ctx, *in.CoverImage)
		if err != nil {
			return nil, s.compensate(ctx, apperr.Wrap(apperr.KindUpstream, "Cover image upload failed", err), uploaded)
		}
		uploaded = append(uploaded, a)
		upd.CoverImage, upd.CoverImageID = &a.URL, &a.ReferenceID
		stale = append(stale, current.CoverImageID)
	}

	u, err := s.repo.UpdateFields(ctx, userID, upd)
	if err != nil {
		return nil, s.compensate(ctx, s.updateError(err), uploaded)
	}
	if u == nil {
		return nil, s.compensate(ctx, ErrUserNotFound, uploaded)
	}

	for _, ref := range stale {
		if ref == "" {
			continue
		}
		if err := s.media.Remove(ctx, ref); err != nil {
			logger.WithFields(logger.Fields{"user_id": userID, "reference_id": ref}).Warnf("old media not removed: %v", err)
		}
	}
	return u.Public(), nil
}

func (s *Service) updateError(err error) error {
	switch {
	case errors.Is(err, ErrDuplicate):
		return ErrUserExists
	case errors.Is(err, ErrNotFound):
		return ErrUserNotFound
	}
	return apperr.Wrap(apperr.KindPersistence, "update user", err)
}

func hashError(err error) error {
	if errors.Is(err, password.ErrTooLong) {
		return apperr.Wrap(apperr.KindValidation, validation.MsgPassword, err)
	}
	return apperr.Wrap(apperr.KindInternal, "hash password", err)
}
