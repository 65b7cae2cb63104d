package diagnosis

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource always returns the same draw.
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func TestDemoGeneratorZeroNoisePipeline(t *testing.T) {
	// 0.5 maps to zero noise.
	gen, err := NewDemoScoreGenerator(DefaultDemoWeights(), fixedSource(0.5))
	require.NoError(t, err)

	raw := gen.Generate()
	assert.Equal(t, ScoreVector{0.7, 0.2, 0.1}, raw)

	res, err := newTestNormalizer(t).Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, []float64{70.0, 20.0, 10.0}, res.Distribution)
	assert.Equal(t, EarlyBlight, res.TopLabel)
}

func TestDemoGeneratorClampsToFloor(t *testing.T) {
	// 0 maps to the most negative noise, -0.15.
	gen, err := NewDemoScoreGenerator(DefaultDemoWeights(), fixedSource(0))
	require.NoError(t, err)

	raw := gen.Generate()
	require.Len(t, raw, 3)
	assert.InDelta(t, 0.55, raw[0], 1e-9)
	assert.InDelta(t, 0.05, raw[1], 1e-9)
	assert.Equal(t, 0.05, raw[2])

	res, err := newTestNormalizer(t).Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, EarlyBlight, res.TopLabel)
	assert.InDelta(t, 100.0, sum(res.Distribution), 0.1)
}

func TestDemoGeneratorStaysInBounds(t *testing.T) {
	weights := DefaultDemoWeights()
	gen, err := NewDemoScoreGenerator(weights, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		for j, v := range gen.Generate() {
			assert.GreaterOrEqual(t, v, 0.05)
			assert.GreaterOrEqual(t, v, weights[j]-0.15-1e-9)
			assert.LessOrEqual(t, v, weights[j]+0.15)
		}
	}
}

func TestDemoGeneratorConcurrentUse(t *testing.T) {
	gen, err := NewDemoScoreGenerator(DefaultDemoWeights(), rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Len(t, gen.Generate(), 3)
			}
		}()
	}
	wg.Wait()
}

func TestNewDemoScoreGeneratorValidatesWeights(t *testing.T) {
	_, err := NewDemoScoreGenerator(nil, nil)
	assert.Error(t, err)

	_, err = NewDemoScoreGenerator([]float64{0.5, -0.1}, nil)
	assert.Error(t, err)

	gen, err := NewDemoScoreGenerator([]float64{0.5, 0.5}, nil)
	require.NoError(t, err)
	assert.Len(t, gen.Generate(), 2)
}
