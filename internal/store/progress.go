package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/derivinsight/sentinel/internal/models"
)

// ProgressStore reads and writes live scan progress snapshots through
// the two-tier store. Only the orchestrator instance that owns a scan
// writes its key, so no locking is required.
type ProgressStore struct {
	store *Tiered
}

// NewProgressStore wraps the shared tiered store.
func NewProgressStore(store *Tiered) *ProgressStore {
	return &ProgressStore{store: store}
}

// Save writes the snapshot under its scan_id key, stamping UpdatedAt.
func (p *ProgressStore) Save(ctx context.Context, snapshot *models.ProgressSnapshot) error {
	snapshot.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal progress snapshot: %w", err)
	}

	return p.store.Set(ctx, ProgressKey(snapshot.ScanID), data, ProgressTTL)
}

// Load returns the current snapshot for a scan, or ErrNotFound once
// the retention window has passed on both tiers.
func (p *ProgressStore) Load(ctx context.Context, scanID string) (*models.ProgressSnapshot, error) {
	data, err := p.store.Get(ctx, ProgressKey(scanID))
	if err != nil {
		return nil, err
	}

	var snapshot models.ProgressSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress snapshot: %w", err)
	}

	return &snapshot, nil
}
