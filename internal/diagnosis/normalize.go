// Package diagnosis turns raw per-label model scores into a ranked
// classification and attaches the care recommendation for the winning label.
package diagnosis

import (
	"errors"
	"fmt"
	"math"
)

// Label is a disease or health category the model distinguishes.
type Label string

// Reference labels, in the positional order the model emits scores.
const (
	EarlyBlight Label = "Early Blight"
	LateBlight  Label = "Late Blight"
	Healthy     Label = "Healthy"
)

// DefaultLabels returns the reference label order.
func DefaultLabels() []Label {
	return []Label{EarlyBlight, LateBlight, Healthy}
}

// ScoreVector holds raw scores positionally aligned to a label set.
// Entries need not sum to 1.
type ScoreVector []float64

// Result is a normalized classification.
type Result struct {
	TopLabel          Label     `json:"top_label"`
	TopIndex          int       `json:"top_index"`
	ConfidencePercent float64   `json:"confidence_percent"`
	Distribution      []float64 `json:"distribution"`
}

// InvalidInputError reports a score vector the normalizer cannot use.
type InvalidInputError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	return "invalid score vector: " + e.Reason
}

// IsInvalidInput reports whether err is or wraps an InvalidInputError.
func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

func invalidInput(format string, args ...any) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

// Normalizer converts score vectors into probability distributions over a
// fixed label set. It holds no mutable state.
type Normalizer struct {
	labels []Label
}

// NewNormalizer builds a normalizer for the given ordered label set.
func NewNormalizer(labels []Label) (*Normalizer, error) {
	if len(labels) == 0 {
		return nil, errors.New("diagnosis: at least one label is required")
	}
	seen := make(map[Label]struct{}, len(labels))
	for _, l := range labels {
		if l == "" {
			return nil, errors.New("diagnosis: empty label")
		}
		if _, dup := seen[l]; dup {
			return nil, fmt.Errorf("diagnosis: duplicate label %q", l)
		}
		seen[l] = struct{}{}
	}
	return &Normalizer{labels: append([]Label(nil), labels...)}, nil
}

// Labels returns a copy of the ordered label set.
func (n *Normalizer) Labels() []Label {
	return append([]Label(nil), n.labels...)
}

// Normalize validates scores and returns the ranked result. The leftmost
// maximum wins ties.
func (n *Normalizer) Normalize(scores ScoreVector) (*Result, error) {
	if len(scores) == 0 {
		return nil, invalidInput("empty")
	}
	if len(scores) != len(n.labels) {
		return nil, invalidInput("got %d scores for %d labels", len(scores), len(n.labels))
	}

	var total float64
	for i, v := range scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalidInput("score %d is not finite", i)
		}
		if v < 0 {
			return nil, invalidInput("score %d is negative", i)
		}
		total += v
	}
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, invalidInput("scores sum to %v", total)
	}

	top := 0
	distribution := make([]float64, len(scores))
	normalized := make([]float64, len(scores))
	for i, v := range scores {
		normalized[i] = v / total
		if normalized[i] > normalized[top] {
			top = i
		}
	}
	for i, p := range normalized {
		distribution[i] = roundTenth(p * 100)
	}

	return &Result{
		TopLabel:          n.labels[top],
		TopIndex:          top,
		ConfidencePercent: distribution[top],
		Distribution:      distribution,
	}, nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
