package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tubeline/user-service/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicate is returned when a username or email is already taken.
var ErrDuplicate = errors.New("username or email already exists")

// ErrNotFound is returned by writes that target a missing user.
var ErrNotFound = errors.New("user not found")

// Lookup selects a user by any of its unique identifiers; non-empty fields are OR-ed.
type Lookup struct {
	ID       string
	Username string
	Email    string
}

func (l Lookup) empty() bool { return l.ID == "" && l.Username == "" && l.Email == "" }

// Update lists the fields to change; nil pointers are left untouched.
type Update struct {
	FullName     *string
	Email        *string
	Password     *string
	Avatar       *string
	AvatarID     *string
	CoverImage   *string
	CoverImageID *string
}

// UserRepository defines persistence operations for users. Lookups return
// (nil, nil) when nothing matches. The refresh-token methods are the session
// store binding used by the sessions package.
type UserRepository interface {
	FindByIdentifier(ctx context.Context, l Lookup) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindProfileByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, u *models.User) (*models.User, error)
	UpdateFields(ctx context.Context, id string, upd Update) (*models.User, error)

	RefreshToken(ctx context.Context, id string) (string, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{col: col}
}

// EnsureIndexes creates the unique username and email indexes (idempotent).
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	return nil
}

// userDocument is the stored shape; _id is an ObjectID on disk and hex in models.User.
type userDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	FullName     string             `bson:"fullName"`
	Avatar       string             `bson:"avatar"`
	AvatarID     string             `bson:"avatarId,omitempty"`
	CoverImage   string             `bson:"coverImage,omitempty"`
	CoverImageID string             `bson:"coverImageId,omitempty"`
	Password     string             `bson:"password"`
	RefreshToken string             `bson:"refreshToken,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d *userDocument) toModel() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		FullName:     d.FullName,
		Avatar:       d.Avatar,
		AvatarID:     d.AvatarID,
		CoverImage:   d.CoverImage,
		CoverImageID: d.CoverImageID,
		Password:     d.Password,
		RefreshToken: d.RefreshToken,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.User, error) {
	var d userDocument
	if err := r.col.FindOne(ctx, filter, opts...).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return d.toModel(), nil
}

func (r *MongoUserRepository) FindByIdentifier(ctx context.Context, l Lookup) (*models.User, error) {
	if l.empty() {
		return nil, nil
	}
	var or bson.A
	if l.ID != "" {
		if oid, err := primitive.ObjectIDFromHex(l.ID); err == nil {
			or = append(or, bson.M{"_id": oid})
		}
	}
	if l.Username != "" {
		or = append(or, bson.M{"username": l.Username})
	}
	if l.Email != "" {
		or = append(or, bson.M{"email": l.Email})
	}
	if len(or) == 0 {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"$or": or})
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindProfileByID loads a user without the password hash and refresh token.
func (r *MongoUserRepository) FindProfileByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	opts := options.FindOne().SetProjection(bson.M{"password": 0, "refreshToken": 0})
	return r.findOne(ctx, bson.M{"_id": oid}, opts)
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	d := userDocument{
		ID:           primitive.NewObjectID(),
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		Avatar:       u.Avatar,
		AvatarID:     u.AvatarID,
		CoverImage:   u.CoverImage,
		CoverImageID: u.CoverImageID,
		Password:     u.Password,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.col.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return d.toModel(), nil
}

func (r *MongoUserRepository) UpdateFields(ctx context.Context, id string, upd Update) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	for field, v := range map[string]*string{
		"fullName":     upd.FullName,
		"email":        upd.Email,
		"password":     upd.Password,
		"avatar":       upd.Avatar,
		"avatarId":     upd.AvatarID,
		"coverImage":   upd.CoverImage,
		"coverImageId": upd.CoverImageID,
	} {
		if v != nil {
			set[field] = *v
		}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d userDocument
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return d.toModel(), nil
}

// RefreshToken returns the stored refresh token, or "" when none is set.
func (r *MongoUserRepository) RefreshToken(ctx context.Context, id string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", nil
	}
	var d struct {
		RefreshToken string `bson:"refreshToken"`
	}
	opts := options.FindOne().SetProjection(bson.M{"refreshToken": 1})
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", err
	}
	return d.RefreshToken, nil
}

// SetRefreshToken overwrites the stored refresh token unconditionally.
func (r *MongoUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"refreshToken": token, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SwapRefreshToken replaces the stored token only while it still equals
// expected. The filter and the update apply to one document atomically, so two
// concurrent swaps from the same expected value cannot both match.
func (r *MongoUserRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	filter := bson.M{"_id": oid, "refreshToken": expected}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"refreshToken": next, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// ClearRefreshToken removes the stored token; missing users are not an error.
func (r *MongoUserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	_, err = r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$unset": bson.M{"refreshToken": ""}, "$set": bson.M{"updatedAt": time.Now().UTC()}})
	return err
}
