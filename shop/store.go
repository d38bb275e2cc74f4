package shop

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/mharding/shopfront/audit"
	"github.com/mharding/shopfront/crypto"
	"github.com/mharding/shopfront/internal/util"
	"github.com/mharding/shopfront/storage"
)

// Store implements the storefront operations over a storage.Repository.
// Protected fields pass through the field codec on their way in and out
// of storage; mutations to users, products, and orders are recorded by
// the audit recorder inside the same write batch as the mutation itself.
type Store struct {
	repo     storage.Repository
	codec    crypto.FieldCodec
	recorder *audit.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore wires the domain store.
func NewStore(repo storage.Repository, codec crypto.FieldCodec, recorder *audit.Recorder, logger *slog.Logger) *Store {
	return &Store{
		repo:     repo,
		codec:    codec,
		recorder: recorder,
		logger:   logger.With("component", "shop"),
		now:      time.Now,
	}
}

// Repository exposes the underlying repository for audit trail reads.
func (s *Store) Repository() storage.Repository { return s.repo }

// AuditTrail returns all audit entries, newest first.
func (s *Store) AuditTrail() ([]audit.Entry, error) {
	return audit.List(s.repo)
}

// ---- protected-field codec application ----

// encodeUser returns a copy of u with protected fields encrypted for
// storage.
func (s *Store) encodeUser(u User) (User, error) {
	var err error
	if u.Phone, err = s.codec.Encode(u.Phone); err != nil {
		return u, fmt.Errorf("encoding phone: %w", err)
	}
	if u.Address, err = s.codec.Encode(u.Address); err != nil {
		return u, fmt.Errorf("encoding address: %w", err)
	}
	if u.MFASecret, err = s.codec.Encode(u.MFASecret); err != nil {
		return u, fmt.Errorf("encoding mfa secret: %w", err)
	}
	return u, nil
}

// decodeUser reverses encodeUser. Decryption never fails: values that do
// not parse as ciphertext are passed through as legacy plaintext.
func (s *Store) decodeUser(u User) User {
	u.Phone = s.codec.Decode(u.Phone)
	u.Address = s.codec.Decode(u.Address)
	u.MFASecret = s.codec.Decode(u.MFASecret)
	return u
}

func (s *Store) encodeOrder(o Order) (Order, error) {
	var err error
	if o.ShippingAddress, err = s.codec.Encode(o.ShippingAddress); err != nil {
		return o, fmt.Errorf("encoding shipping address: %w", err)
	}
	if o.CardNumber, err = s.codec.Encode(o.CardNumber); err != nil {
		return o, fmt.Errorf("encoding card number: %w", err)
	}
	if o.CardExpiry, err = s.codec.Encode(o.CardExpiry); err != nil {
		return o, fmt.Errorf("encoding card expiry: %w", err)
	}
	if o.CardCVV, err = s.codec.Encode(o.CardCVV); err != nil {
		return o, fmt.Errorf("encoding card cvv: %w", err)
	}
	if o.BankAccount, err = s.codec.Encode(o.BankAccount); err != nil {
		return o, fmt.Errorf("encoding bank account: %w", err)
	}
	return o, nil
}

func (s *Store) decodeOrder(o Order) Order {
	o.ShippingAddress = s.codec.Decode(o.ShippingAddress)
	o.CardNumber = s.codec.Decode(o.CardNumber)
	o.CardExpiry = s.codec.Decode(o.CardExpiry)
	o.CardCVV = s.codec.Decode(o.CardCVV)
	o.BankAccount = s.codec.Decode(o.BankAccount)
	return o
}

// ---- generic record helpers ----

func putRecord(tx storage.Tx, recordType, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", recordType, err)
	}
	return tx.Put(recordType, id, data)
}

func (s *Store) getRecord(recordType, id string, v any) error {
	data, err := s.repo.Get(recordType, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// scanRecords decodes every record of a type and appends those the
// visit callback accepts. Secondary lookups (email, slug) are full
// scans; the catalog and user sets are small enough that an index is
// not worth its write amplification.
func scanRecords[T any](s *Store, recordType string, visit func(T) bool) ([]T, error) {
	ids, err := s.repo.List(recordType)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		data, err := s.repo.Get(recordType, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decoding %s record %s: %w", recordType, id, err)
		}
		if visit == nil || visit(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// ---- shared helpers ----

// Slugify lowercases a name and reduces it to hyphen-separated
// alphanumeric runs for use in URLs.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// newOrderNumber generates a human-readable unique order number, e.g.
// ORD-20260831-7KQ2M9TC.
func (s *Store) newOrderNumber() (string, error) {
	suffix, err := util.RandomChars(8)
	if err != nil {
		return "", fmt.Errorf("generating order number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%s", s.now().UTC().Format("20060102"), suffix), nil
}

// Page bounds a paginated listing.
type Page struct {
	Number  int
	PerPage int
}

// clamp normalizes a page request and returns the slice bounds for a
// result set of n items.
func (p Page) clamp(n int) (lo, hi int) {
	per := p.PerPage
	if per < 1 {
		per = 20
	}
	num := p.Number
	if num < 1 {
		num = 1
	}
	lo = (num - 1) * per
	if lo > n {
		lo = n
	}
	hi = lo + per
	if hi > n {
		hi = n
	}
	return lo, hi
}
