package diagnosis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeAttachesRecommendation(t *testing.T) {
	analyzer, _, err := NewAnalyzer(DefaultProfile(), fixedSource(0.5))
	require.NoError(t, err)

	tests := []struct {
		scores   ScoreVector
		label    Label
		severity string
		level    string
		tips     int
	}{
		{scores: ScoreVector{0.1, 0.1, 0.8}, label: Healthy, severity: SeverityHealthy, level: LevelSuccess, tips: 4},
		{scores: ScoreVector{0.6, 0.3, 0.1}, label: EarlyBlight, severity: SeverityEarly, level: LevelWarning, tips: 5},
		{scores: ScoreVector{0.2, 0.7, 0.1}, label: LateBlight, severity: SeverityAdvanced, level: LevelError, tips: 6},
	}

	for _, tt := range tests {
		t.Run(string(tt.label), func(t *testing.T) {
			d, err := analyzer.Analyze(tt.scores)
			require.NoError(t, err)
			assert.Equal(t, tt.label, d.TopLabel)
			assert.Equal(t, tt.severity, d.Recommendation.Severity)
			assert.Equal(t, tt.level, d.Recommendation.Level)
			assert.Len(t, d.Recommendation.Tips, tt.tips)
			assert.Equal(t, DefaultLabels(), d.Labels)
		})
	}
}

func TestAnalyzePropagatesInvalidInput(t *testing.T) {
	analyzer, _, err := NewAnalyzer(DefaultProfile(), nil)
	require.NoError(t, err)

	_, err = analyzer.Analyze(ScoreVector{0, 0, 0})
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
}

func TestNewAnalyzerRejectsPartialCatalog(t *testing.T) {
	p := DefaultProfile()
	delete(p.Recommendations, LateBlight)

	_, _, err := NewAnalyzer(p, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnmappedLabel))
}

func TestNewAnalyzerRejectsExtraCatalogEntry(t *testing.T) {
	p := DefaultProfile()
	p.Recommendations["Leaf Mold"] = p.Recommendations[Healthy]

	_, _, err := NewAnalyzer(p, nil)
	assert.Error(t, err)
}

func TestNewAnalyzerRejectsWeightMismatch(t *testing.T) {
	p := DefaultProfile()
	p.DemoWeights = []float64{0.5, 0.5}

	_, _, err := NewAnalyzer(p, nil)
	assert.Error(t, err)
}

func TestCatalogLookupUnknownLabel(t *testing.T) {
	catalog, err := NewCatalog(DefaultLabels(), DefaultRecommendations())
	require.NoError(t, err)

	_, err = catalog.Lookup("Leaf Mold")
	assert.ErrorIs(t, err, ErrUnmappedLabel)

	rec, err := catalog.Lookup(Healthy)
	require.NoError(t, err)
	rec.Tips[0] = "mutated"
	again, err := catalog.Lookup(Healthy)
	require.NoError(t, err)
	assert.Equal(t, "Continue regular watering schedule", again.Tips[0])
}

func TestCatalogRejectsBadRecommendation(t *testing.T) {
	recs := DefaultRecommendations()
	bad := recs[Healthy]
	bad.Severity = "mild"
	recs[Healthy] = bad

	_, err := NewCatalog(DefaultLabels(), recs)
	assert.Error(t, err)
}

func TestDisplayLabelTruncates(t *testing.T) {
	d := &Diagnosis{Result: Result{TopLabel: "Septoria Leaf Spot Advanced"}}
	assert.Equal(t, "Septoria Leaf Spot...", d.DisplayLabel())

	d.TopLabel = LateBlight
	assert.Equal(t, "Late Blight", d.DisplayLabel())
}

func TestShareText(t *testing.T) {
	d := &Diagnosis{Result: Result{TopLabel: Healthy, ConfidencePercent: 80}}

	text := d.ShareText("https://leaf.example/result/1")
	assert.Contains(t, text, "Tomato Leaf Diagnosis Report:")
	assert.Contains(t, text, "Healthy")
	assert.Contains(t, text, "Confidence: 80.0%")
	assert.Contains(t, text, "https://leaf.example/result/1")
}
