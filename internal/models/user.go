package models

import "time"

// User is the identity record owned by the document store.
// Password and RefreshToken never leave the service: both are excluded from JSON.
type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email" json:"email"`
	FullName     string    `bson:"fullName" json:"fullName"`
	Avatar       string    `bson:"avatar" json:"avatar"`
	AvatarID     string    `bson:"avatarId,omitempty" json:"-"`
	CoverImage   string    `bson:"coverImage,omitempty" json:"coverImage"`
	CoverImageID string    `bson:"coverImageId,omitempty" json:"-"`
	Password     string    `bson:"password,omitempty" json:"-"`
	RefreshToken string    `bson:"refreshToken,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Public returns a copy without the password hash and refresh token.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Password = ""
	cp.RefreshToken = ""
	return &cp
}
