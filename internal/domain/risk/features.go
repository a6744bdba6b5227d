// Package risk implements dropout-risk classification. Students are scored
// from four signals - attendance percentage, average test score, exam
// attempts, and fee status - either by the rule ladder that also produces
// training labels, or by a decision tree trained on those labels.
package risk

import (
	"errors"
	"fmt"
	"sort"

	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEATURES
// ══════════════════════════════════════════════════════════════════════════════

// Feature indexes into a feature vector. Order is part of the persisted
// model format and must not change.
const (
	FeatureAttendance = iota
	FeatureScore
	FeatureAttempts
	FeatureFee
	NumFeatures
)

// FeatureNames maps feature indexes to stable names for diagnostics.
var FeatureNames = [NumFeatures]string{
	"attendance_pct",
	"average_score",
	"exam_attempts",
	"fee_status",
}

// Vector is one student's feature vector.
type Vector [NumFeatures]float64

// Sample is a labelled feature vector used for training.
type Sample struct {
	Features Vector
	Label    student.RiskLevel
}

// ══════════════════════════════════════════════════════════════════════════════
// RULE LADDER
// ══════════════════════════════════════════════════════════════════════════════

// Rule thresholds. These generate the ground-truth labels the tree is
// trained on and double as the fallback classifier when no model is loaded.
const (
	highAttendanceBelow   = 70
	highScoreBelow        = 50
	mediumAttendanceBelow = 75
	mediumScoreBelow      = 60
	mediumAttemptsAbove   = 3
)

// RuleLabel classifies metrics with the rule ladder:
// high when attendance and score are both critical, medium when any single
// signal degrades, low otherwise.
func RuleLabel(m student.Metrics) student.RiskLevel {
	if int(m.AttendancePct) < highAttendanceBelow && int(m.AverageScore) < highScoreBelow {
		return student.RiskHigh
	}
	if int(m.AttendancePct) < mediumAttendanceBelow ||
		int(m.AverageScore) < mediumScoreBelow ||
		m.ExamAttempts > mediumAttemptsAbove {
		return student.RiskMedium
	}
	return student.RiskLow
}

// ══════════════════════════════════════════════════════════════════════════════
// LABEL ENCODER
// ══════════════════════════════════════════════════════════════════════════════

// ErrUnknownClass is returned when encoding a value the encoder was not
// fitted on. Callers fall back to the rule ladder in that case.
var ErrUnknownClass = errors.New("risk: unknown class for label encoder")

// LabelEncoder maps categorical values to their index in the sorted set of
// classes seen at fit time.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// FitLabelEncoder builds an encoder over the distinct values in the input.
func FitLabelEncoder(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}
}

// Transform returns the index of a fitted class.
func (e *LabelEncoder) Transform(value string) (float64, error) {
	for i, c := range e.Classes {
		if c == value {
			return float64(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownClass, value)
}

// ══════════════════════════════════════════════════════════════════════════════
// VECTOR CONSTRUCTION
// ══════════════════════════════════════════════════════════════════════════════

// Featurize converts student metrics into a feature vector using the given
// fee-status encoder.
func Featurize(m student.Metrics, enc *LabelEncoder) (Vector, error) {
	var v Vector
	fee, err := enc.Transform(m.FeeStatus.String())
	if err != nil {
		return v, err
	}
	v[FeatureAttendance] = float64(m.AttendancePct)
	v[FeatureScore] = float64(m.AverageScore)
	v[FeatureAttempts] = float64(m.ExamAttempts)
	v[FeatureFee] = fee
	return v, nil
}

// BuildTrainingSet labels metrics with the rule ladder and fits a fee
// encoder over them. The returned samples and encoder are everything
// needed to train a tree.
func BuildTrainingSet(metrics []student.Metrics) ([]Sample, *LabelEncoder) {
	fees := make([]string, len(metrics))
	for i, m := range metrics {
		fees[i] = m.FeeStatus.String()
	}
	enc := FitLabelEncoder(fees)

	samples := make([]Sample, 0, len(metrics))
	for _, m := range metrics {
		vec, err := Featurize(m, enc)
		if err != nil {
			// Cannot happen: the encoder was fitted on this very set.
			continue
		}
		samples = append(samples, Sample{Features: vec, Label: RuleLabel(m)})
	}
	return samples, enc
}
