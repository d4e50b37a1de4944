package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/model"
	"github.com/sakif/booklog/internal/repository"
)

var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the users collection.
type UserDB struct {
	coll *driver.Collection
}

func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Email:        user.Email,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		ProfileImage: user.ProfileImage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := u.coll.InsertOne(ctx, doc); err != nil {
		if conflict := duplicateKey(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("mongo: inserting user %q: %w", user.Username, err)
	}

	user.ID = doc.ID.Hex()
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.NotFound("User not found")
	}
	return u.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (u *UserDB) findOne(ctx context.Context, filter bson.D) (*model.User, error) {
	var doc userDoc
	if err := u.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, fmt.Errorf("mongo: finding user: %w", err)
	}
	return doc.toModel(), nil
}
