package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task ID prefix for log correlation
const itemIDPrefix = "item-"

// Item is one URL's end-to-end unit of work through the pipeline. It is
// owned exclusively by the goroutine running its stage sequence; only
// distinct items run concurrently.
type Item struct {
	ID  string
	URL string

	// Meta is nil until metadata resolution succeeds. Once set, Meta.ID is
	// immutable for the item's lifetime.
	Meta *Metadata

	// PredictedPath is the deterministic output path computed during the
	// pre-check, used for the idempotence short-circuit.
	PredictedPath string

	Stage   Stage
	Percent float64 // 0 to 100 on the unified composite scale

	StartedAt  time.Time
	FinishedAt time.Time
	LastError  string
}

// NewItem creates a pipeline item for a source URL.
func NewItem(url string) *Item {
	return &Item{
		ID:        generateItemID(),
		URL:       url,
		Stage:     StagePreCheck,
		StartedAt: time.Now(),
	}
}

// SetMetadata records resolved metadata. The first resolved content ID wins;
// a later resolution with a different ID is rejected.
func (it *Item) SetMetadata(meta *Metadata) error {
	if meta == nil {
		return fmt.Errorf("nil metadata")
	}
	if it.Meta != nil && it.Meta.ID != meta.ID {
		return fmt.Errorf("content id changed from %s to %s", it.Meta.ID, meta.ID)
	}
	it.Meta = meta
	return nil
}

// ContentID returns the resolved content identifier, or "" if metadata was
// never resolved.
func (it *Item) ContentID() string {
	if it.Meta == nil {
		return ""
	}
	return it.Meta.ID
}

// Advance moves the item to the given stage, enforcing strict stage order.
func (it *Item) Advance(to Stage) error {
	if !it.Stage.CanAdvanceTo(to) {
		return fmt.Errorf("illegal stage transition %s -> %s", it.Stage, to)
	}
	it.Stage = to
	if to.IsTerminal() {
		it.FinishedAt = time.Now()
	}
	return nil
}

// generateItemID generates a unique item ID using UUID v7 so IDs sort
// chronologically in logs.
func generateItemID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(itemIDPrefix+"%d", time.Now().UnixNano())
	}
	return itemIDPrefix + id.String()
}
