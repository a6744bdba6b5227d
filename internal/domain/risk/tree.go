package risk

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DECISION TREE
// ══════════════════════════════════════════════════════════════════════════════

// Training defaults. Depth 5 keeps the tree interpretable; with four
// features and threshold-style labels it reproduces the rule ladder almost
// exactly while tolerating noisy training rows.
const (
	DefaultMaxDepth    = 5
	DefaultMinLeafSize = 1
)

var (
	// ErrNoSamples - training requires at least one labelled sample.
	ErrNoSamples = errors.New("risk: no training samples")

	// ErrCorruptModel - a persisted model failed structural validation.
	ErrCorruptModel = errors.New("risk: corrupt model")
)

// Node is one node of a fitted tree. Leaf nodes carry a label; internal
// nodes route vectors by comparing one feature against a threshold
// (left: value <= threshold, right: value > threshold).
type Node struct {
	Leaf      bool              `json:"leaf"`
	Label     student.RiskLevel `json:"label,omitempty"`
	Feature   int               `json:"feature,omitempty"`
	Threshold float64           `json:"threshold,omitempty"`
	Left      *Node             `json:"left,omitempty"`
	Right     *Node             `json:"right,omitempty"`
}

// DecisionTree is a CART classifier over risk feature vectors.
type DecisionTree struct {
	Root        *Node `json:"root"`
	MaxDepth    int   `json:"max_depth"`
	MinLeafSize int   `json:"min_leaf_size"`
	TrainedOn   int   `json:"trained_on"`
}

// TrainOptions configures tree fitting.
type TrainOptions struct {
	MaxDepth    int
	MinLeafSize int
}

// DefaultTrainOptions returns the standard configuration.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		MaxDepth:    DefaultMaxDepth,
		MinLeafSize: DefaultMinLeafSize,
	}
}

// Train fits a decision tree on labelled samples. Training is
// deterministic: identical samples in any order produce the same tree,
// because splits scan features in index order and thresholds in sorted
// order, keeping the first of equally good candidates.
func Train(samples []Sample, opts TrainOptions) (*DecisionTree, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MinLeafSize <= 0 {
		opts.MinLeafSize = DefaultMinLeafSize
	}

	// Copy and sort so input order cannot influence split selection.
	working := make([]Sample, len(samples))
	copy(working, samples)
	sort.SliceStable(working, func(i, j int) bool {
		for f := 0; f < NumFeatures; f++ {
			if working[i].Features[f] != working[j].Features[f] {
				return working[i].Features[f] < working[j].Features[f]
			}
		}
		return working[i].Label.Severity() < working[j].Label.Severity()
	})

	return &DecisionTree{
		Root:        grow(working, opts, 0),
		MaxDepth:    opts.MaxDepth,
		MinLeafSize: opts.MinLeafSize,
		TrainedOn:   len(samples),
	}, nil
}

// Predict routes a vector to a leaf label.
func (t *DecisionTree) Predict(v Vector) student.RiskLevel {
	node := t.Root
	for node != nil && !node.Leaf {
		if v[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	if node == nil {
		return student.RiskUnknown
	}
	return node.Label
}

// Depth returns the height of the fitted tree.
func (t *DecisionTree) Depth() int {
	return depth(t.Root)
}

func depth(n *Node) int {
	if n == nil || n.Leaf {
		return 0
	}
	l, r := depth(n.Left), depth(n.Right)
	if l > r {
		return l + 1
	}
	return r + 1
}

// ─────────────────────────────────────────────────────────────────────────────
// Fitting
// ─────────────────────────────────────────────────────────────────────────────

func grow(samples []Sample, opts TrainOptions, level int) *Node {
	if level >= opts.MaxDepth || len(samples) <= opts.MinLeafSize || pure(samples) {
		return &Node{Leaf: true, Label: majority(samples)}
	}

	feature, threshold, ok := bestSplit(samples)
	if !ok {
		return &Node{Leaf: true, Label: majority(samples)}
	}

	left := make([]Sample, 0, len(samples))
	right := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Features[feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	return &Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      grow(left, opts, level+1),
		Right:     grow(right, opts, level+1),
	}
}

// bestSplit finds the (feature, threshold) pair with the lowest weighted
// Gini impurity. Returns ok=false when no split separates the samples.
func bestSplit(samples []Sample) (feature int, threshold float64, ok bool) {
	bestGini := gini(samples)
	if bestGini == 0 {
		return 0, 0, false
	}

	for f := 0; f < NumFeatures; f++ {
		values := make([]float64, 0, len(samples))
		seen := make(map[float64]struct{}, len(samples))
		for _, s := range samples {
			if _, dup := seen[s.Features[f]]; !dup {
				seen[s.Features[f]] = struct{}{}
				values = append(values, s.Features[f])
			}
		}
		sort.Float64s(values)

		for i := 0; i+1 < len(values); i++ {
			// Midpoint between adjacent distinct values.
			t := (values[i] + values[i+1]) / 2

			var left, right []Sample
			for _, s := range samples {
				if s.Features[f] <= t {
					left = append(left, s)
				} else {
					right = append(right, s)
				}
			}
			if len(left) == 0 || len(right) == 0 {
				continue
			}

			weighted := (float64(len(left))*gini(left) + float64(len(right))*gini(right)) / float64(len(samples))
			if weighted < bestGini {
				bestGini = weighted
				feature = f
				threshold = t
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func gini(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	counts := make(map[student.RiskLevel]int)
	for _, s := range samples {
		counts[s.Label]++
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(len(samples))
		impurity -= p * p
	}
	return impurity
}

func pure(samples []Sample) bool {
	for i := 1; i < len(samples); i++ {
		if samples[i].Label != samples[0].Label {
			return false
		}
	}
	return true
}

// majority returns the most common label; ties resolve to the more severe
// level so ambiguity errs toward intervention.
func majority(samples []Sample) student.RiskLevel {
	counts := make(map[student.RiskLevel]int)
	for _, s := range samples {
		counts[s.Label]++
	}

	best := student.RiskUnknown
	bestCount := -1
	for _, level := range []student.RiskLevel{student.RiskLow, student.RiskMedium, student.RiskHigh} {
		if c := counts[level]; c > bestCount || (c == bestCount && level.Severity() > best.Severity()) {
			best = level
			bestCount = c
		}
	}
	return best
}

// ─────────────────────────────────────────────────────────────────────────────
// Serialization
// ─────────────────────────────────────────────────────────────────────────────

// Marshal serializes the tree to JSON for persistence.
func (t *DecisionTree) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

// UnmarshalTree restores a persisted tree and validates its structure.
func UnmarshalTree(data []byte) (*DecisionTree, error) {
	var t DecisionTree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}
	if t.Root == nil {
		return nil, fmt.Errorf("%w: missing root", ErrCorruptModel)
	}
	if err := validateNode(t.Root, 0); err != nil {
		return nil, err
	}
	return &t, nil
}

func validateNode(n *Node, level int) error {
	if level > 64 {
		return fmt.Errorf("%w: tree too deep", ErrCorruptModel)
	}
	if n.Leaf {
		if !n.Label.IsValid() {
			return fmt.Errorf("%w: leaf with label %q", ErrCorruptModel, n.Label)
		}
		return nil
	}
	if n.Feature < 0 || n.Feature >= NumFeatures {
		return fmt.Errorf("%w: feature index %d", ErrCorruptModel, n.Feature)
	}
	if n.Left == nil || n.Right == nil {
		return fmt.Errorf("%w: internal node missing children", ErrCorruptModel)
	}
	if err := validateNode(n.Left, level+1); err != nil {
		return err
	}
	return validateNode(n.Right, level+1)
}
