package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/imagehost"
	"github.com/sakif/booklog/internal/model"
	"github.com/sakif/booklog/internal/repository"
)

// =========================================================================
// FAKES
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	// set to simulate store failures
	createErr error
	lookupErr error
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, u := range f.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("User not found")
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id })
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email })
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == username })
}

// fakeBookRepo is an in-memory repository.BookRepository. Books created
// later sort first.
type fakeBookRepo struct {
	books  []model.Book
	nextID int

	createErr error
	listErr   error
	deleteErr error
}

var _ repository.BookRepository = (*fakeBookRepo)(nil)

func (f *fakeBookRepo) Create(_ context.Context, book *model.Book) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	book.ID = fmt.Sprintf("book-%02d", f.nextID)
	book.CreatedAt = time.Unix(int64(f.nextID), 0)
	book.UpdatedAt = book.CreatedAt
	f.books = append(f.books, *book)
	return nil
}

func (f *fakeBookRepo) GetByID(_ context.Context, id string) (*model.Book, error) {
	for _, b := range f.books {
		if b.ID == id {
			copied := b
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("Book not found")
}

func (f *fakeBookRepo) newestFirst() []model.Book {
	sorted := append([]model.Book(nil), f.books...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	return sorted
}

func (f *fakeBookRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Book, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	sorted := f.newestFirst()
	if opts.Offset >= len(sorted) {
		return []model.Book{}, nil
	}
	end := min(opts.Offset+opts.Limit, len(sorted))
	return sorted[opts.Offset:end], nil
}

func (f *fakeBookRepo) ListByUser(_ context.Context, userID string) ([]model.Book, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.Book{}
	for _, b := range f.newestFirst() {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookRepo) Count(context.Context) (int, error) {
	return len(f.books), nil
}

func (f *fakeBookRepo) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, b := range f.books {
		if b.ID == id {
			f.books = append(f.books[:i], f.books[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("Book not found")
}

// fakeHost is an imagehost.Host that records calls. It owns URLs under
// https://img.test/.
type fakeHost struct {
	uploads   []string
	destroyed []string
	nextID    int

	uploadErr  error
	destroyErr error
}

var _ imagehost.Host = (*fakeHost)(nil)

const fakeHostBase = "https://img.test/books/"

func (f *fakeHost) Upload(_ context.Context, data string) (*imagehost.Image, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.nextID++
	id := fmt.Sprintf("img%d", f.nextID)
	f.uploads = append(f.uploads, data)
	return &imagehost.Image{URL: fakeHostBase + id + ".png", ID: id}, nil
}

func (f *fakeHost) Destroy(_ context.Context, id string) error {
	f.destroyed = append(f.destroyed, id)
	return f.destroyErr
}

func (f *fakeHost) Owns(rawURL string) bool {
	return len(rawURL) > len(fakeHostBase) && rawURL[:len(fakeHostBase)] == fakeHostBase
}

// fakeEvents counts book lifecycle events.
type fakeEvents struct {
	created, deleted, cleanupFailed int
}

func (f *fakeEvents) BookCreated()        { f.created++ }
func (f *fakeEvents) BookDeleted()        { f.deleted++ }
func (f *fakeEvents) ImageCleanupFailed() { f.cleanupFailed++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
