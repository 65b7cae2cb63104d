package diagnosis

import (
	"fmt"
	"strings"
)

const maxDisplayLabel = 20

// Profile describes a model: its ordered labels, the demo base weights and
// the recommendation for each label.
type Profile struct {
	Labels          []Label
	DemoWeights     []float64
	Recommendations map[Label]Recommendation
}

// DefaultProfile returns the tomato leaf reference profile.
func DefaultProfile() Profile {
	return Profile{
		Labels:          DefaultLabels(),
		DemoWeights:     DefaultDemoWeights(),
		Recommendations: DefaultRecommendations(),
	}
}

// Diagnosis is a classification result with its recommendation.
type Diagnosis struct {
	Result
	Labels         []Label        `json:"labels"`
	Recommendation Recommendation `json:"recommendation"`
}

// Analyzer ties a Normalizer to a Catalog.
type Analyzer struct {
	normalizer *Normalizer
	catalog    *Catalog
}

// NewAnalyzer validates the profile and builds an analyzer for it. The
// returned generator produces demo scores aligned to the same labels.
func NewAnalyzer(p Profile, src RandomSource) (*Analyzer, *DemoScoreGenerator, error) {
	normalizer, err := NewNormalizer(p.Labels)
	if err != nil {
		return nil, nil, err
	}
	if len(p.DemoWeights) != len(p.Labels) {
		return nil, nil, fmt.Errorf("diagnosis: %d demo weights for %d labels", len(p.DemoWeights), len(p.Labels))
	}
	catalog, err := NewCatalog(p.Labels, p.Recommendations)
	if err != nil {
		return nil, nil, err
	}
	demo, err := NewDemoScoreGenerator(p.DemoWeights, src)
	if err != nil {
		return nil, nil, err
	}
	return &Analyzer{normalizer: normalizer, catalog: catalog}, demo, nil
}

// Labels returns the ordered label set.
func (a *Analyzer) Labels() []Label {
	return a.normalizer.Labels()
}

// Recommendation returns the catalog entry for label.
func (a *Analyzer) Recommendation(label Label) (Recommendation, error) {
	return a.catalog.Lookup(label)
}

// Analyze normalizes scores and looks up the recommendation for the winner.
func (a *Analyzer) Analyze(scores ScoreVector) (*Diagnosis, error) {
	result, err := a.normalizer.Normalize(scores)
	if err != nil {
		return nil, err
	}
	rec, err := a.catalog.Lookup(result.TopLabel)
	if err != nil {
		return nil, err
	}
	return &Diagnosis{
		Result:         *result,
		Labels:         a.normalizer.Labels(),
		Recommendation: rec,
	}, nil
}

// DisplayLabel shortens long labels for compact display.
func (d *Diagnosis) DisplayLabel() string {
	runes := []rune(string(d.TopLabel))
	if len(runes) > maxDisplayLabel {
		return string(runes[:maxDisplayLabel-2]) + "..."
	}
	return string(runes)
}

// ShareText renders a plain-text report suitable for sharing.
func (d *Diagnosis) ShareText(link string) string {
	var b strings.Builder
	b.WriteString("Tomato Leaf Diagnosis Report:\n")
	fmt.Fprintf(&b, "%s\n", d.DisplayLabel())
	fmt.Fprintf(&b, "Confidence: %.1f%%\n", d.ConfidencePercent)
	b.WriteString("\nAnalyzed by Tomato Leaf Doctor AI")
	if link != "" {
		b.WriteString("\n" + link)
	}
	return b.String()
}
