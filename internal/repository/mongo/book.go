package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/model"
	"github.com/sakif/booklog/internal/repository"
)

var _ repository.BookRepository = (*BookDB)(nil)

// BookDB is the books collection.
type BookDB struct {
	coll *driver.Collection
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (b *BookDB) Create(ctx context.Context, book *model.Book) error {
	owner, err := primitive.ObjectIDFromHex(book.UserID)
	if err != nil {
		return fmt.Errorf("mongo: invalid owner id %q: %w", book.UserID, err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := bookDoc{
		ID:        primitive.NewObjectID(),
		Title:     book.Title,
		Caption:   book.Caption,
		Rating:    book.Rating,
		Image:     book.Image,
		User:      owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := b.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: inserting book: %w", err)
	}

	book.ID = doc.ID.Hex()
	book.CreatedAt = now
	book.UpdatedAt = now
	return nil
}

func (b *BookDB) GetByID(ctx context.Context, id string) (*model.Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.NotFound("Book not found")
	}

	var doc bookDoc
	if err := b.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, apperror.NotFound("Book not found")
		}
		return nil, fmt.Errorf("mongo: finding book %s: %w", id, err)
	}
	book := doc.toModel()
	return &book, nil
}

func (b *BookDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Book, error) {
	pipeline := driver.Pipeline{
		{{Key: "$sort", Value: newestFirst}},
		{{Key: "$skip", Value: int64(opts.Offset)}},
		{{Key: "$limit", Value: int64(opts.Limit)}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: usersCollection},
			{Key: "localField", Value: "user"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "owner"},
		}}},
		{{Key: "$unwind", Value: "$owner"}},
	}

	cur, err := b.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing books: %w", err)
	}
	defer cur.Close(ctx)

	books := make([]model.Book, 0, opts.Limit)
	for cur.Next(ctx) {
		var doc listedBookDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decoding book: %w", err)
		}
		book := doc.Book.toModel()
		book.Owner = &model.BookOwner{
			ID:           doc.Owner.ID.Hex(),
			Username:     doc.Owner.Username,
			ProfileImage: doc.Owner.ProfileImage,
		}
		books = append(books, book)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterating books: %w", err)
	}
	return books, nil
}

func (b *BookDB) ListByUser(ctx context.Context, userID string) ([]model.Book, error) {
	books := []model.Book{}

	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return books, nil
	}

	cur, err := b.coll.Find(ctx,
		bson.D{{Key: "user", Value: owner}},
		options.Find().SetSort(newestFirst),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing books for user %s: %w", userID, err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc bookDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decoding book: %w", err)
		}
		books = append(books, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterating books: %w", err)
	}
	return books, nil
}

func (b *BookDB) Count(ctx context.Context) (int, error) {
	n, err := b.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongo: counting books: %w", err)
	}
	return int(n), nil
}

func (b *BookDB) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperror.NotFound("Book not found")
	}

	res, err := b.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("mongo: deleting book %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("Book not found")
	}
	return nil
}
