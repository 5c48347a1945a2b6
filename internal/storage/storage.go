// Package storage persists parsed documents together with the metadata of
// the run that produced them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/feedocr/internal/layout"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Backends accepted by Open.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Record is one parsed screenshot sequence.
type Record struct {
	// ID is the sequence name; saving the same ID again replaces the record.
	ID            string          `json:"id"`
	RunID         string          `json:"run_id"`
	ScreenshotDir string          `json:"screenshot_dir"`
	ReprocessDate time.Time       `json:"reprocess_date"`
	Engine        string          `json:"engine,omitempty"`
	Document      layout.Document `json:"document"`
}

// Validate checks the fields every backend needs.
func (r Record) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return errors.New("record id is required")
	case strings.ContainsAny(r.ID, `/\`) || r.ID == "." || r.ID == "..":
		return fmt.Errorf("record id %q must not contain path separators", r.ID)
	}
	return nil
}

// Store saves and loads records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Dir         string
	DatabaseURL string
}

// Open returns the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return NewFileStore(opts.Dir)
	case BackendPostgres:
		return NewPostgresStore(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
