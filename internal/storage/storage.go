// Package storage defines the interaction store: one record per
// simulated request cycle, for inspection after a test run.
package storage

import (
	"context"
	"time"
)

// Interaction is the persisted record of one request cycle.
type Interaction struct {
	ID             string
	Method         string
	Path           string
	ContentType    string
	MatchedFixture string
	ShortCircuited bool
	Forwarded      bool
	Status         int
	// HookFailures is a JSON-encoded list of contained customization
	// failures, empty when every hook ran clean.
	HookFailures string
	Duration     time.Duration
	CreatedAt    time.Time
}

// InteractionStore persists interaction records.
type InteractionStore interface {
	SaveInteraction(ctx context.Context, in *Interaction) error
	ListInteractions(ctx context.Context, limit int) ([]*Interaction, error)
	Close() error
}
