package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// MODEL PERSISTENCE
// ══════════════════════════════════════════════════════════════════════════════

// ErrNoModel is returned when no trained model has been persisted yet.
var ErrNoModel = errors.New("risk: no trained model available")

// Model bundles the tree with the fee-status encoder it was trained with.
// The two are only valid together.
type Model struct {
	Tree      *DecisionTree `json:"tree"`
	Encoder   *LabelEncoder `json:"encoder"`
	TrainedAt time.Time     `json:"trained_at"`
}

// Marshal serializes the model for persistence.
func (m *Model) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalModel restores a persisted model.
func UnmarshalModel(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}
	if m.Tree == nil || m.Tree.Root == nil {
		return nil, fmt.Errorf("%w: missing tree", ErrCorruptModel)
	}
	if err := validateNode(m.Tree.Root, 0); err != nil {
		return nil, err
	}
	if m.Encoder == nil || len(m.Encoder.Classes) == 0 {
		return nil, fmt.Errorf("%w: missing encoder", ErrCorruptModel)
	}
	return &m, nil
}

// ModelStore is the persistence port for trained models.
type ModelStore interface {
	// Save persists a model as the current one.
	Save(ctx context.Context, m *Model) error

	// Load returns the current model, or ErrNoModel.
	Load(ctx context.Context) (*Model, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFIER
// ══════════════════════════════════════════════════════════════════════════════

// Classifier scores students. With a loaded model it predicts via the
// decision tree; without one, or when a vector cannot be encoded (an
// unseen fee status), it falls back to the rule ladder so scoring never
// fails. Safe for concurrent use.
type Classifier struct {
	mu    sync.RWMutex
	model *Model
}

// NewClassifier returns a classifier with no model loaded.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// NewClassifierWithModel returns a classifier using the given model.
func NewClassifierWithModel(m *Model) *Classifier {
	return &Classifier{model: m}
}

// HasModel reports whether a trained model is loaded.
func (c *Classifier) HasModel() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

// SetModel swaps in a freshly trained model.
func (c *Classifier) SetModel(m *Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = m
}

// Model returns the loaded model, or nil.
func (c *Classifier) Model() *Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Train fits a new model on the given metrics, swaps it in, and returns it.
func (c *Classifier) Train(metrics []student.Metrics, opts TrainOptions) (*Model, error) {
	samples, enc := BuildTrainingSet(metrics)
	tree, err := Train(samples, opts)
	if err != nil {
		return nil, err
	}

	model := &Model{
		Tree:      tree,
		Encoder:   enc,
		TrainedAt: time.Now().UTC(),
	}
	c.SetModel(model)
	return model, nil
}

// Predict classifies one set of metrics.
func (c *Classifier) Predict(m student.Metrics) student.RiskLevel {
	c.mu.RLock()
	model := c.model
	c.mu.RUnlock()

	if model == nil {
		return RuleLabel(m)
	}

	vec, err := Featurize(m, model.Encoder)
	if err != nil {
		return RuleLabel(m)
	}

	level := model.Tree.Predict(vec)
	if !level.IsValid() || level == student.RiskUnknown {
		// A leaf outside the trained classes means a corrupt model
		// slipped through validation; stay safe.
		return RuleLabel(m)
	}
	return level
}

// PredictAll classifies a batch, one result per input.
func (c *Classifier) PredictAll(metrics []student.Metrics) []student.RiskLevel {
	levels := make([]student.RiskLevel, len(metrics))
	for i, m := range metrics {
		levels[i] = c.Predict(m)
	}
	return levels
}
