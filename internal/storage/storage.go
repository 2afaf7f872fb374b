// Package storage keeps a record of every accepted listing for later
// analysis. It is a side-effect sink; the seen set lives in internal/store.
package storage

import (
	"context"

	"sjsage522/consoledealworker/internal/listing"
)

// ListingSink records accepted listings
type ListingSink interface {
	Save(ctx context.Context, listings []listing.ClassifiedListing) error
	Close() error
}

// NopSink discards everything. It is used when no database is configured.
type NopSink struct{}

func (NopSink) Save(ctx context.Context, listings []listing.ClassifiedListing) error { return nil }

func (NopSink) Close() error { return nil }
