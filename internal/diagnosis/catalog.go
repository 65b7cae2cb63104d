package diagnosis

import (
	"errors"
	"fmt"
)

// ErrUnmappedLabel is returned when a label has no recommendation bundle.
var ErrUnmappedLabel = errors.New("diagnosis: label has no recommendation")

// Severity tiers.
const (
	SeverityHealthy  = "healthy"
	SeverityEarly    = "early"
	SeverityAdvanced = "advanced"
)

// Notification levels used by clients when announcing a diagnosis.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Recommendation is the care bundle shown for a diagnosed label.
type Recommendation struct {
	Icon     string   `json:"icon" yaml:"icon"`
	Color    string   `json:"color" yaml:"color"`
	Title    string   `json:"title" yaml:"title"`
	Severity string   `json:"severity" yaml:"severity"`
	Level    string   `json:"level" yaml:"level"`
	Tips     []string `json:"tips" yaml:"tips"`
}

// Catalog maps every label of a set to exactly one Recommendation.
type Catalog struct {
	entries map[Label]Recommendation
}

// NewCatalog checks that entries cover labels exactly and returns the catalog.
func NewCatalog(labels []Label, entries map[Label]Recommendation) (*Catalog, error) {
	known := make(map[Label]struct{}, len(labels))
	for _, l := range labels {
		known[l] = struct{}{}
		rec, ok := entries[l]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnmappedLabel, l)
		}
		if err := rec.validate(); err != nil {
			return nil, fmt.Errorf("diagnosis: recommendation for %q: %w", l, err)
		}
	}
	for l := range entries {
		if _, ok := known[l]; !ok {
			return nil, fmt.Errorf("diagnosis: recommendation for unknown label %q", l)
		}
	}

	copied := make(map[Label]Recommendation, len(entries))
	for l, rec := range entries {
		rec.Tips = append([]string(nil), rec.Tips...)
		copied[l] = rec
	}
	return &Catalog{entries: copied}, nil
}

// Lookup returns the recommendation for label.
func (c *Catalog) Lookup(label Label) (Recommendation, error) {
	rec, ok := c.entries[label]
	if !ok {
		return Recommendation{}, fmt.Errorf("%w: %q", ErrUnmappedLabel, label)
	}
	rec.Tips = append([]string(nil), rec.Tips...)
	return rec, nil
}

func (r Recommendation) validate() error {
	if r.Title == "" {
		return errors.New("title is required")
	}
	switch r.Severity {
	case SeverityHealthy, SeverityEarly, SeverityAdvanced:
	default:
		return fmt.Errorf("unknown severity %q", r.Severity)
	}
	switch r.Level {
	case LevelSuccess, LevelWarning, LevelError:
	default:
		return fmt.Errorf("unknown level %q", r.Level)
	}
	if len(r.Tips) == 0 {
		return errors.New("at least one tip is required")
	}
	return nil
}

// DefaultRecommendations returns the reference bundles for DefaultLabels.
func DefaultRecommendations() map[Label]Recommendation {
	return map[Label]Recommendation{
		Healthy: {
			Icon:     "fa-check-circle",
			Color:    "#2d6a4f",
			Title:    "Excellent! Your plant is healthy.",
			Severity: SeverityHealthy,
			Level:    LevelSuccess,
			Tips: []string{
				"Continue regular watering schedule",
				"Ensure 6-8 hours of sunlight daily",
				"Apply balanced fertilizer monthly",
				"Monitor for early signs of disease",
			},
		},
		EarlyBlight: {
			Icon:     "fa-exclamation-triangle",
			Color:    "#ff9800",
			Title:    "Early Blight Detected",
			Severity: SeverityEarly,
			Level:    LevelWarning,
			Tips: []string{
				"Remove affected leaves immediately",
				"Apply copper-based fungicide",
				"Improve air circulation around plants",
				"Water at soil level, avoid wetting leaves",
				"Apply neem oil spray weekly",
			},
		},
		LateBlight: {
			Icon:     "fa-skull-crossbones",
			Color:    "#f44336",
			Title:    "Late Blight Detected - Immediate Action Required",
			Severity: SeverityAdvanced,
			Level:    LevelError,
			Tips: []string{
				"QUARANTINE: Isolate affected plants",
				"Remove and destroy all infected plants",
				"Apply systemic fungicide immediately",
				"Avoid overhead watering",
				"Clean gardening tools thoroughly",
				"Consider planting resistant varieties next season",
			},
		},
	}
}
