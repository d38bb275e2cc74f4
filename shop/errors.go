package shop

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller does not own the entity.
	ErrForbidden = errors.New("forbidden")

	ErrEmailTaken    = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDeactivated = errors.New("account deactivated")

	// ErrMFARequired signals that the password check passed but the
	// account requires a TOTP code before a session may be established.
	ErrMFARequired       = errors.New("mfa verification required")
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	ErrMFACodeInvalid    = errors.New("invalid verification code")

	ErrEmptyCart          = errors.New("cart is empty")
	ErrOutOfStock         = errors.New("product out of stock")
	ErrInsufficientStock  = errors.New("quantity exceeds available stock")
	ErrCardRequired       = errors.New("card details required")
	ErrBankRequired       = errors.New("bank account required")
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrInvalidOrderStatus = errors.New("invalid order status")
)
