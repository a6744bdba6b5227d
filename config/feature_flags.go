package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for the early-warning pipeline.
// Every risky behavior (model predictions, outgoing mail, event-driven
// escalation) sits behind a flag so a misbehaving rollout can be turned
// off with an env var and a restart.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// Predefined feature flag names.
const (
	// === Risk model ===
	FeatureMLPredictions = "ml.predictions" // classify via trained tree instead of plain rules
	FeatureMLAutoRetrain = "ml.auto_retrain" // retrain the model on schedule

	// === Alerting ===
	FeatureAlertsEmail      = "alerts.email"      // send risk alerts over SMTP
	FeatureAlertsEscalation = "alerts.escalation" // immediate alert when a student escalates to high risk
	FeatureAlertsWeekly     = "alerts.weekly"     // Monday morning batch for medium/high risk

	// === Infrastructure ===
	FeatureCacheRedis  = "cache.redis"  // cache student lists and stats in Redis
	FeatureIngestExcel = "ingest.excel" // accept .xlsx files in the importer
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features: make(map[string]*Feature),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureMLPredictions] = &Feature{
		Name:        FeatureMLPredictions,
		Description: "Classify risk with the trained decision tree",
		Enabled:     true,
	}

	ff.features[FeatureMLAutoRetrain] = &Feature{
		Name:        FeatureMLAutoRetrain,
		Description: "Retrain the risk model on schedule",
		Enabled:     true,
	}

	ff.features[FeatureAlertsEmail] = &Feature{
		Name:        FeatureAlertsEmail,
		Description: "Send risk alerts over SMTP",
		Enabled:     true,
	}

	ff.features[FeatureAlertsEscalation] = &Feature{
		Name:        FeatureAlertsEscalation,
		Description: "Alert immediately when a student escalates to high risk",
		Enabled:     true,
	}

	ff.features[FeatureAlertsWeekly] = &Feature{
		Name:        FeatureAlertsWeekly,
		Description: "Weekly batch alerts for medium and high risk students",
		Enabled:     true,
	}

	ff.features[FeatureCacheRedis] = &Feature{
		Name:        FeatureCacheRedis,
		Description: "Cache student lists and stats in Redis",
		Enabled:     true,
	}

	ff.features[FeatureIngestExcel] = &Feature{
		Name:        FeatureIngestExcel,
		Description: "Accept .xlsx files in the importer",
		Enabled:     true,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_ML_PREDICTIONS=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "ml.predictions" -> "FEATURE_ML_PREDICTIONS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if !feature.Enabled {
		return false
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	return true
}

// EnableFeature enables a feature.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.setEnabled(featureName, true)
}

// DisableFeature disables a feature.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.setEnabled(featureName, false)
}

func (ff *FeatureFlags) setEnabled(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	feature.Enabled = enabled
	return nil
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// MLPredictionsEnabled checks if model-based classification is enabled.
func (ff *FeatureFlags) MLPredictionsEnabled() bool {
	return ff.IsEnabled(FeatureMLPredictions)
}

// NotificationsEnabled checks if any outgoing alerts are enabled.
func (ff *FeatureFlags) NotificationsEnabled() bool {
	return ff.IsEnabled(FeatureAlertsEmail) &&
		(ff.IsEnabled(FeatureAlertsWeekly) || ff.IsEnabled(FeatureAlertsEscalation))
}

// --- Errors ---

var ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
