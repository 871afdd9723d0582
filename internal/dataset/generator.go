// Package dataset produces synthetic numeric series for dashboard widgets and
// downsamples them for rendering.
package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"gridboard/pkg/dashboard"
)

// ErrUnknownSize is returned for size names outside the canonical partition.
var ErrUnknownSize = errors.New("unknown dataset size")

// DefaultSampleCap bounds the number of points handed to a chart renderer.
const DefaultSampleCap = 2000

// MaxValue is the inclusive upper bound of generated values.
const MaxValue = 1000

// Bounds is a half-open length range [Min, Max).
type Bounds struct {
	Min int
	Max int
}

// Contains reports whether n lies in the range.
func (b Bounds) Contains(n int) bool { return n >= b.Min && n < b.Max }

var sizeBounds = map[dashboard.SizeCategory]Bounds{
	dashboard.SizeTiny:   {Min: 10, Max: 90},
	dashboard.SizeSmall:  {Min: 50, Max: 450},
	dashboard.SizeMedium: {Min: 1000, Max: 9000},
	dashboard.SizeLarge:  {Min: 10000, Max: 20000},
}

// BoundsFor returns the length range of a size category.
func BoundsFor(size dashboard.SizeCategory) (Bounds, error) {
	b, ok := sizeBounds[size]
	if !ok {
		return Bounds{}, fmt.Errorf("%w: %q", ErrUnknownSize, size)
	}
	return b, nil
}

// ParseSize maps a size name to a category. The empty string selects small.
func ParseSize(s string) (dashboard.SizeCategory, error) {
	if s == "" {
		return dashboard.SizeSmall, nil
	}
	size := dashboard.SizeCategory(s)
	if _, ok := sizeBounds[size]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSize, s)
	}
	return size, nil
}

// Series is a generated set of values with matching x-axis labels.
type Series struct {
	Labels []string
	Data   []float64
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Data) }

// Generator draws series from its random source. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a generator over the given source; nil seeds from the clock.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>17|1)
	}
	return &Generator{rnd: rand.New(src)}
}

// Generate returns a series whose length is drawn uniformly from the
// category's range and whose values are integers in [0, MaxValue].
func (g *Generator) Generate(size dashboard.SizeCategory) (Series, error) {
	b, err := BoundsFor(size)
	if err != nil {
		return Series{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	n := b.Min + g.rnd.IntN(b.Max-b.Min)
	s := Series{Labels: make([]string, n), Data: make([]float64, n)}
	for i := range n {
		s.Data[i] = float64(g.rnd.IntN(MaxValue + 1))
		s.Labels[i] = strconv.Itoa(i + 1)
	}
	return s, nil
}

// IntN returns a uniform integer in [lo, hi].
func (g *Generator) IntN(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rnd.IntN(hi-lo+1)
}

var defaultGenerator = NewGenerator(nil)

// Default returns the process-wide generator.
func Default() *Generator { return defaultGenerator }

// Generate draws from the process-wide generator.
func Generate(size dashboard.SizeCategory) (Series, error) {
	return defaultGenerator.Generate(size)
}

// Sample stride-samples a series down to at most limit points for rendering.
// Inputs at or under the limit are returned as-is; inputs are never modified.
// A limit of zero or less uses DefaultSampleCap.
func Sample(labels []string, data []float64, limit int) ([]string, []float64) {
	if limit <= 0 {
		limit = DefaultSampleCap
	}
	if len(data) <= limit {
		return labels, data
	}
	step := (len(data) + limit - 1) / limit
	n := (len(data) + step - 1) / step
	outLabels := make([]string, 0, n)
	outData := make([]float64, 0, n)
	for i := 0; i < len(data); i += step {
		if i < len(labels) {
			outLabels = append(outLabels, labels[i])
		} else {
			outLabels = append(outLabels, "")
		}
		outData = append(outData, data[i])
	}
	return outLabels, outData
}
