// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// AvatarBaseURL is the DiceBear endpoint used to generate profile pictures.
// The username is appended verbatim as the seed, so the same username always
// produces byte-for-byte the same URL.
const AvatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// User represents a registered account.
//
// WHY PasswordHash HAS json:"-"?
// The "-" struct tag tells encoding/json to skip the field entirely, in both
// directions. Even if a handler accidentally encodes a whole *User, the bcrypt
// hash can never leak into a response body.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	ProfileImage string    `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AvatarURL returns the generated profile image URL for a username.
func AvatarURL(username string) string {
	return AvatarBaseURL + username
}

// UserView is the public shape of a user returned by the auth endpoints.
type UserView struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage"`
}

// View strips everything a client must not see.
func (u *User) View() UserView {
	return UserView{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
	}
}
