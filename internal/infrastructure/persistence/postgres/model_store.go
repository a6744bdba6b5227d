package postgres

import (
	"context"
	"fmt"

	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
)

// ══════════════════════════════════════════════════════════════════════════════
// MODEL STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ModelStore implements risk.ModelStore on the risk_models table.
// Models are append-only; Load picks the newest row.
type ModelStore struct {
	conn *Connection
}

// NewModelStore creates a new ModelStore.
func NewModelStore(conn *Connection) *ModelStore {
	return &ModelStore{conn: conn}
}

// Save persists a model as the current one.
func (s *ModelStore) Save(ctx context.Context, m *risk.Model) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal risk model: %w", err)
	}

	trainedOn := 0
	if m.Tree != nil {
		trainedOn = m.Tree.TrainedOn
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO risk_models (model, trained_on, trained_at)
		VALUES ($1, $2, $3)
	`, data, trainedOn, m.TrainedAt)
	if err != nil {
		return fmt.Errorf("failed to save risk model: %w", err)
	}

	return nil
}

// Load returns the current model, or risk.ErrNoModel.
func (s *ModelStore) Load(ctx context.Context) (*risk.Model, error) {
	var data []byte
	err := s.conn.QueryRow(ctx, `
		SELECT model FROM risk_models
		ORDER BY trained_at DESC, id DESC
		LIMIT 1
	`).Scan(&data)
	if err != nil {
		if IsNoRows(err) {
			return nil, risk.ErrNoModel
		}
		return nil, fmt.Errorf("failed to load risk model: %w", err)
	}

	return risk.UnmarshalModel(data)
}
