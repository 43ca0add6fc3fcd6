package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound indicates a lookup that matched no row. Callers must
// distinguish it from a store failure: an unknown card is a deny with
// a display message, a broken database is not.
var ErrNotFound = errors.New("not found")

// Store defines the registry operations the validation pipeline needs.
type Store interface {
	// FindCredential looks a credential up by its wire number.
	FindCredential(ctx context.Context, number string) (*Credential, error)

	// FindCredentialByKeypadCode looks a credential up by its keypad code.
	FindCredentialByKeypadCode(ctx context.Context, code string) (*Credential, error)

	// FindUser looks a user up by its registry code.
	FindUser(ctx context.Context, code string) (*User, error)

	// AppendAccess records one decided access request.
	AppendAccess(ctx context.Context, event *AccessEvent) error

	// LastGrantedAccess returns the user's most recent granted passage
	// in the given direction, or ErrNotFound if there is none.
	LastGrantedAccess(ctx context.Context, userCode, direction string) (*AccessEvent, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) FindCredential(ctx context.Context, number string) (*Credential, error) {
	var cred Credential
	err := s.db.WithContext(ctx).Where("number = ?", number).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: credential %q", ErrNotFound, number)
		}
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	return &cred, nil
}

func (s *gormStore) FindCredentialByKeypadCode(ctx context.Context, code string) (*Credential, error) {
	var cred Credential
	err := s.db.WithContext(ctx).Where("keypad_code = ?", code).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: keypad code", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	return &cred, nil
}

func (s *gormStore) FindUser(ctx context.Context, code string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %q", ErrNotFound, code)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (s *gormStore) AppendAccess(ctx context.Context, event *AccessEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append access event: %w", err)
	}
	return nil
}

func (s *gormStore) LastGrantedAccess(ctx context.Context, userCode, direction string) (*AccessEvent, error) {
	var event AccessEvent
	err := s.db.WithContext(ctx).
		Where("user_code = ? AND direction = ? AND granted = ?", userCode, direction, true).
		Order("occurred_at DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no granted access for user %q", ErrNotFound, userCode)
		}
		return nil, fmt.Errorf("failed to query access log: %w", err)
	}
	return &event, nil
}

// Compile-time interface satisfaction check.
var _ Store = (*gormStore)(nil)
