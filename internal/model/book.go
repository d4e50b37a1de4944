package model

import "time"

// Rating bounds. Books are rated on a five-star scale.
const (
	MinRating = 1
	MaxRating = 5
)

// Book is a single logged read with its cover image.
//
// UserID always holds the owner's ID. Owner is only filled in by listings
// that "expand" the owner reference (the paginated feed); everywhere else it
// is nil and omitted from JSON thanks to omitempty.
type Book struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Caption   string     `json:"caption"`
	Rating    int        `json:"rating"`
	Image     string     `json:"image"`
	UserID    string     `json:"userId"`
	Owner     *BookOwner `json:"user,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// BookOwner is the subset of a User embedded in feed listings.
type BookOwner struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage"`
}

// BookPage is one page of the global book feed.
type BookPage struct {
	Books       []Book `json:"books"`
	CurrentPage int    `json:"currentPage"`
	TotalBooks  int    `json:"totalBooks"`
	TotalPages  int    `json:"totalPages"`
}
