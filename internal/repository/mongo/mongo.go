// Package mongo implements the repository interfaces on MongoDB.
//
// Users and books live in two collections. Identifiers are ObjectIDs stored
// in _id and exposed to the rest of the application as hex strings. Book
// listings expand the owner with a $lookup stage.
package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/model"
	"github.com/sakif/booklog/internal/repository"
)

const (
	usersCollection = "users"
	booksCollection = "books"
)

var _ repository.Store = (*DB)(nil)

// DB owns the client and vends the repositories.
type DB struct {
	client *driver.Client
	users  *UserDB
	books  *BookDB
}

// New connects to uri, verifies the connection and makes sure the indexes
// exist in the named database.
func New(ctx context.Context, uri, database string) (*DB, error) {
	client, err := driver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	db := client.Database(database)
	if err := ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: creating indexes: %w", err)
	}

	return &DB{
		client: client,
		users:  &UserDB{coll: db.Collection(usersCollection)},
		books:  &BookDB{coll: db.Collection(booksCollection)},
	}, nil
}

func ensureIndexes(ctx context.Context, db *driver.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []driver.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(booksCollection).Indexes().CreateMany(ctx, []driver.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return err
}

func (db *DB) Users() repository.UserRepository { return db.users }

func (db *DB) Books() repository.BookRepository { return db.books }

func (db *DB) Ping(ctx context.Context) error {
	if err := db.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo: ping: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

// duplicateKey maps an E11000 on one of the users indexes to an
// apperror.Conflict. Returns nil for any other error.
func duplicateKey(err error) error {
	if !driver.IsDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "index: email_1"):
		return apperror.Conflict("email", "Email already exists")
	case strings.Contains(msg, "index: username_1"):
		return apperror.Conflict("username", "Username already exists")
	default:
		return apperror.Conflict("", "Record already exists")
	}
}

// userDoc is the stored shape of a user.
type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Username     string             `bson:"username"`
	PasswordHash string             `bson:"password"`
	ProfileImage string             `bson:"profileImage"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d userDoc) toModel() *model.User {
	return &model.User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		ProfileImage: d.ProfileImage,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// bookDoc is the stored shape of a book. User references users._id.
type bookDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Caption   string             `bson:"caption"`
	Rating    int                `bson:"rating"`
	Image     string             `bson:"image"`
	User      primitive.ObjectID `bson:"user"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d bookDoc) toModel() model.Book {
	return model.Book{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Caption:   d.Caption,
		Rating:    d.Rating,
		Image:     d.Image,
		UserID:    d.User.Hex(),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// listedBookDoc is a book with its owner joined in by $lookup.
type listedBookDoc struct {
	Book  bookDoc `bson:",inline"`
	Owner userDoc `bson:"owner"`
}
