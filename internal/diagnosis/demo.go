package diagnosis

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	demoFloor  = 0.05
	demoSpread = 0.15
)

// DefaultDemoWeights are the base weights for DefaultLabels.
func DefaultDemoWeights() []float64 {
	return []float64{0.7, 0.2, 0.1}
}

// RandomSource yields uniform values in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// DemoScoreGenerator fabricates plausible score vectors for demo mode.
type DemoScoreGenerator struct {
	weights []float64

	mu  sync.Mutex
	src RandomSource
}

// NewDemoScoreGenerator returns a generator over the given base weights.
// A nil src selects a time-seeded math/rand source.
func NewDemoScoreGenerator(weights []float64, src RandomSource) (*DemoScoreGenerator, error) {
	if len(weights) == 0 {
		return nil, errors.New("diagnosis: demo weights are required")
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("diagnosis: demo weight %d must be a non-negative number", i)
		}
	}
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &DemoScoreGenerator{
		weights: append([]float64(nil), weights...),
		src:     src,
	}, nil
}

// Generate returns one raw, unnormalized score per weight:
// max(0.05, weight + noise) with noise uniform in [-0.15, +0.15).
func (g *DemoScoreGenerator) Generate() ScoreVector {
	g.mu.Lock()
	defer g.mu.Unlock()

	scores := make(ScoreVector, len(g.weights))
	for i, w := range g.weights {
		noise := g.src.Float64()*2*demoSpread - demoSpread
		scores[i] = math.Max(demoFloor, w+noise)
	}
	return scores
}
