package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
//
// Set the cost so hashing takes roughly 200–300ms on production hardware.
// Too low and offline cracking gets cheap; too high and login spikes eat the
// CPU.
const DefaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer inputs are rejected
// rather than silently truncated.
const MaxPasswordBytes = 72

var (
	// ErrPasswordTooLong is returned by Hash for inputs over MaxPasswordBytes.
	ErrPasswordTooLong = fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)

	// ErrPasswordMismatch is returned by Verify when the password is wrong.
	ErrPasswordMismatch = errors.New("auth: invalid password")
)

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct rather than free functions so the cost can be injected:
// tests run at bcrypt.MinCost (4) and stay fast.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with DefaultCost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: DefaultCost}
}

// NewPasswordServiceWithCost creates a PasswordService with a custom cost.
// Zero means DefaultCost; anything outside bcrypt's accepted range is an error.
func NewPasswordServiceWithCost(cost int) (*PasswordService, error) {
	if cost == 0 {
		return NewPasswordService(), nil
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &PasswordService{cost: cost}, nil
}

// Hash hashes the plaintext password with bcrypt. The result embeds the salt
// and cost, e.g.
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// and is stored as-is.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks a plaintext password against a stored bcrypt hash.
// Returns ErrPasswordMismatch when they differ. The comparison is constant
// time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
