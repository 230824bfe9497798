// Package store persists extraction results keyed by user id.
//
// Every backend has merge semantics: keys present in the record overwrite the
// stored values, keys absent from it are left untouched.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Driver names accepted by New
const (
	DriverNone      = "none"
	DriverMemory    = "memory"
	DriverRedis     = "redis"
	DriverPostgres  = "postgres"
	DriverSheets    = "sheets"
	DriverFirestore = "firestore"
)

// RecordKey names the per-user record the results are stored under.
const RecordKey = "aadharData"

var (
	// ErrNotFound is returned by Get when no record exists for the id.
	ErrNotFound = errors.New("record not found")

	// ErrUnsupportedDriver is returned by New for an unknown driver name.
	ErrUnsupportedDriver = errors.New("unsupported store driver")

	// ErrEmptyID is returned when an operation is called without a user id.
	ErrEmptyID = errors.New("empty record id")
)

// Store is a keyed document store.
type Store interface {
	// Merge writes record under id, keeping stored keys not present in record.
	Merge(ctx context.Context, id string, record map[string]string) error

	// Get returns the stored record for id or ErrNotFound.
	Get(ctx context.Context, id string) (map[string]string, error)

	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver string

	RedisURL    string
	DatabaseURL string

	SheetURL       string
	SheetWorksheet string

	// ProjectID is the Google Cloud project holding the Firestore database.
	ProjectID string
}

// New opens the backend named by opts.Driver. An empty driver means DriverNone.
func New(ctx context.Context, opts Options) (Store, error) {
	const op = "New"

	switch opts.Driver {
	case "", DriverNone:
		return Nop{}, nil
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverRedis:
		s, err := NewRedisStore(ctx, opts.RedisURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := NewPostgresStore(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSheets:
		s, err := NewSheetsStore(ctx, opts.SheetURL, opts.SheetWorksheet)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverFirestore:
		s, err := NewFirestoreStore(ctx, opts.ProjectID)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnsupportedDriver, opts.Driver)
	}
}

// Nop discards writes and never finds anything.
type Nop struct{}

func (Nop) Merge(context.Context, string, map[string]string) error { return nil }

func (Nop) Get(context.Context, string) (map[string]string, error) { return nil, ErrNotFound }

func (Nop) Close() error { return nil }
