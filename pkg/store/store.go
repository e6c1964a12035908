// Package store persists form submissions. Backends share the Store
// interface: an in-memory store, a JSON file and MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/atomicdeploy/form-receipts/pkg/submission"
	"github.com/google/uuid"
)

// Supported drivers
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverMongo  = "mongo"
)

// ErrNotFound is returned when no submission has the requested id.
var ErrNotFound = errors.New("submission not found")

// Store is a document store of submissions. Submissions are created once
// and never updated or deleted.
type Store interface {
	// Create validates the input and persists a new submission.
	Create(ctx context.Context, in submission.Input) (submission.Submission, error)
	// List returns all submissions, newest first.
	List(ctx context.Context) ([]submission.Submission, error)
	// Get returns one submission or ErrNotFound.
	Get(ctx context.Context, id string) (submission.Submission, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

// Open returns the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverFile:
		return NewFileStore(cfg.Path)
	case DriverMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s (expected memory, file or mongo)", cfg.Driver)
	}
}

// Option configures the memory and file stores.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock sets the time source used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDs sets the id generator.
func WithIDs(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func buildOptions(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// prepare normalizes and validates an input.
func prepare(in submission.Input) (submission.Input, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

// newestFirst copies submissions kept in insertion order and sorts them by
// creation time, descending. Equal timestamps keep the latest insert first.
func newestFirst(inserted []submission.Submission) []submission.Submission {
	out := make([]submission.Submission, len(inserted))
	for i, s := range inserted {
		out[len(inserted)-1-i] = s
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
