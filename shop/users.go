package shop

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mharding/shopfront/internal/util"
	"github.com/mharding/shopfront/internal/uuid"
	"github.com/mharding/shopfront/storage"
)

// RegisterInput carries new-account fields. Phone is optional.
type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Register creates a customer account. Email and username must be
// unique, case-insensitively for email.
func (s *Store) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if existing, err := s.FindUserByEmail(email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	}
	if existing, err := s.FindUserByUsername(in.Username); err == nil && existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := util.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now().UTC()
	user := User{
		ID:           uuid.New(),
		Email:        email,
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         RoleCustomer,
		IsActive:     true,
		Phone:        in.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.saveUserInsert(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return &user, nil
}

// Authenticate checks an email/password pair. When the account has MFA
// enabled it returns the user together with ErrMFARequired: the caller
// must stage the user id and demand a TOTP code before establishing a
// session.
func (s *Store) Authenticate(email, password string) (*User, error) {
	user, err := s.FindUserByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	ok, err := util.ComparePassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	if user.MFAEnabled {
		return user, ErrMFARequired
	}
	return user, nil
}

// GetUser loads a user by id with protected fields decoded.
func (s *Store) GetUser(id string) (*User, error) {
	var u User
	if err := s.getRecord(recordTypeUser, id, &u); err != nil {
		return nil, err
	}
	u = s.decodeUser(u)
	return &u, nil
}

// FindUserByEmail scans for a user by exact email.
func (s *Store) FindUserByEmail(email string) (*User, error) {
	return s.findUser(func(u User) bool { return u.Email == email })
}

// FindUserByUsername scans for a user by exact username.
func (s *Store) FindUserByUsername(username string) (*User, error) {
	return s.findUser(func(u User) bool { return u.Username == username })
}

func (s *Store) findUser(match func(User) bool) (*User, error) {
	users, err := scanRecords[User](s, recordTypeUser, match)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	u := s.decodeUser(users[0])
	return &u, nil
}

// ListUsers returns all accounts sorted by creation time, newest first.
func (s *Store) ListUsers() ([]User, error) {
	users, err := scanRecords[User](s, recordTypeUser, nil)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i] = s.decodeUser(users[i])
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Address   string
}

// UpdateProfile applies profile edits and audits the column-level diff.
func (s *Store) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*User, error) {
	before, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email != before.Email {
		if other, err := s.FindUserByEmail(email); err == nil && other.ID != userID {
			return nil, ErrEmailTaken
		}
	}
	if in.Username != before.Username {
		if other, err := s.FindUserByUsername(in.Username); err == nil && other.ID != userID {
			return nil, ErrUsernameTaken
		}
	}

	after := *before
	after.Username = in.Username
	after.Email = email
	after.FirstName = in.FirstName
	after.LastName = in.LastName
	after.Phone = in.Phone
	after.Address = in.Address
	after.UpdatedAt = s.now().UTC()

	if err := s.saveUserUpdate(ctx, *before, after); err != nil {
		return nil, err
	}
	return &after, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *Store) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	before, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	ok, err := util.ComparePassword(oldPassword, before.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}
	hash, err := util.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	after := *before
	after.PasswordHash = hash
	after.UpdatedAt = s.now().UTC()
	return s.saveUserUpdate(ctx, *before, after)
}

// SetUserActive toggles the activation flag. Deactivated accounts cannot
// log in; existing sessions die at the next security validation.
func (s *Store) SetUserActive(ctx context.Context, userID string, active bool) error {
	before, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	after := *before
	after.IsActive = active
	after.UpdatedAt = s.now().UTC()
	return s.saveUserUpdate(ctx, *before, after)
}

// SetUserRole changes an account's role.
func (s *Store) SetUserRole(ctx context.Context, userID string, role Role) error {
	before, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	after := *before
	after.Role = role
	after.UpdatedAt = s.now().UTC()
	return s.saveUserUpdate(ctx, *before, after)
}

// DeleteUser removes an account and cascades to its orders, order items,
// and cart items inside one write batch.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	orders, err := scanRecords[Order](s, recordTypeOrder, func(o Order) bool { return o.UserID == userID })
	if err != nil {
		return err
	}
	orderIDs := make(map[string]bool, len(orders))
	for _, o := range orders {
		orderIDs[o.ID] = true
	}
	items, err := scanRecords[OrderItem](s, recordTypeOrderItem, func(i OrderItem) bool { return orderIDs[i.OrderID] })
	if err != nil {
		return err
	}
	cartItems, err := scanRecords[CartItem](s, recordTypeCartItem, func(c CartItem) bool { return c.UserID == userID })
	if err != nil {
		return err
	}

	return s.repo.Update(func(tx storage.Tx) error {
		for _, o := range orders {
			if err := tx.Delete(recordTypeOrder, o.ID); err != nil {
				return err
			}
			decoded := s.decodeOrder(o)
			s.recorder.RecordDelete(ctx, tx, &decoded)
		}
		for _, i := range items {
			if err := tx.Delete(recordTypeOrderItem, i.ID); err != nil {
				return err
			}
		}
		for _, c := range cartItems {
			if err := tx.Delete(recordTypeCartItem, c.ID); err != nil {
				return err
			}
		}
		if err := tx.Delete(recordTypeUser, userID); err != nil {
			return err
		}
		s.recorder.RecordDelete(ctx, tx, user)
		return nil
	})
}

// saveUserInsert persists a new user and records the INSERT audit entry
// in the same batch. Audit details carry the in-memory plaintext values.
func (s *Store) saveUserInsert(ctx context.Context, user User) error {
	encoded, err := s.encodeUser(user)
	if err != nil {
		return err
	}
	return s.repo.Update(func(tx storage.Tx) error {
		if err := putRecord(tx, recordTypeUser, user.ID, encoded); err != nil {
			return err
		}
		s.recorder.RecordInsert(ctx, tx, &user)
		return nil
	})
}

func (s *Store) saveUserUpdate(ctx context.Context, before, after User) error {
	encoded, err := s.encodeUser(after)
	if err != nil {
		return err
	}
	return s.repo.Update(func(tx storage.Tx) error {
		if err := putRecord(tx, recordTypeUser, after.ID, encoded); err != nil {
			return err
		}
		s.recorder.RecordUpdate(ctx, tx, &before, &after)
		return nil
	})
}
