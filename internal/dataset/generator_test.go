package dataset

import (
	"errors"
	"math"
	"math/rand/v2"
	"strconv"
	"testing"

	"gridboard/pkg/dashboard"
)

func seeded() *Generator { return NewGenerator(rand.NewPCG(1, 2)) }

func TestGenerateRespectsBounds(t *testing.T) {
	g := seeded()
	for _, size := range dashboard.SizeCategories {
		b, err := BoundsFor(size)
		if err != nil {
			t.Fatalf("bounds %s: %v", size, err)
		}
		for range 5 {
			s, err := g.Generate(size)
			if err != nil {
				t.Fatalf("generate %s: %v", size, err)
			}
			if len(s.Labels) != len(s.Data) {
				t.Fatalf("%s: labels %d data %d", size, len(s.Labels), len(s.Data))
			}
			if !b.Contains(s.Len()) {
				t.Fatalf("%s: length %d outside [%d,%d)", size, s.Len(), b.Min, b.Max)
			}
			for i, v := range s.Data {
				if v < 0 || v > MaxValue || v != math.Trunc(v) {
					t.Fatalf("%s: value %v at %d not an integer in [0,%d]", size, v, i, MaxValue)
				}
				if s.Labels[i] != strconv.Itoa(i+1) {
					t.Fatalf("%s: label %q at %d", size, s.Labels[i], i)
				}
			}
		}
	}
}

func TestGenerateUnknownSize(t *testing.T) {
	if _, err := seeded().Generate("huge"); !errors.Is(err, ErrUnknownSize) {
		t.Fatalf("expected ErrUnknownSize, got %v", err)
	}
}

func TestParseSize(t *testing.T) {
	if got, err := ParseSize(""); err != nil || got != dashboard.SizeSmall {
		t.Fatalf("empty size: %v %v", got, err)
	}
	if got, err := ParseSize("tiny"); err != nil || got != dashboard.SizeTiny {
		t.Fatalf("tiny: %v %v", got, err)
	}
	if _, err := ParseSize("xl"); !errors.Is(err, ErrUnknownSize) {
		t.Fatalf("expected ErrUnknownSize for layout key, got %v", err)
	}
}

func TestSampleUnderCapReturnsInput(t *testing.T) {
	labels := []string{"1", "2", "3"}
	data := []float64{4, 5, 6}
	gotLabels, gotData := Sample(labels, data, 3)
	if &gotData[0] != &data[0] || &gotLabels[0] != &labels[0] {
		t.Fatalf("expected input slices to be returned unchanged")
	}
}

func TestSampleStride(t *testing.T) {
	cases := []struct {
		n, cap int
	}{
		{2001, 2000},
		{4000, 2000},
		{10001, 2000},
		{19999, 2000},
		{10, 3},
	}
	for _, tc := range cases {
		labels := make([]string, tc.n)
		data := make([]float64, tc.n)
		for i := range data {
			data[i] = float64(i)
			labels[i] = strconv.Itoa(i + 1)
		}
		gotLabels, gotData := Sample(labels, data, tc.cap)
		step := int(math.Ceil(float64(tc.n) / float64(tc.cap)))
		want := int(math.Ceil(float64(tc.n) / float64(step)))
		if len(gotData) != want || len(gotLabels) != want {
			t.Fatalf("n=%d cap=%d: got %d points, want %d", tc.n, tc.cap, len(gotData), want)
		}
		if len(gotData) >= tc.n {
			t.Fatalf("n=%d: sample not shorter", tc.n)
		}
		if gotData[0] != data[0] {
			t.Fatalf("n=%d: first point %v", tc.n, gotData[0])
		}
		for i := 1; i < len(gotData); i++ {
			if gotData[i] != float64(i*step) {
				t.Fatalf("n=%d: point %d = %v, want %d", tc.n, i, gotData[i], i*step)
			}
		}
		if data[1] != 1 {
			t.Fatalf("input mutated")
		}
	}
}

func TestSampleDefaultCap(t *testing.T) {
	data := make([]float64, 5000)
	labels := make([]string, 5000)
	_, got := Sample(labels, data, 0)
	if len(got) > DefaultSampleCap {
		t.Fatalf("default cap exceeded: %d", len(got))
	}
}

func TestIntN(t *testing.T) {
	g := seeded()
	for range 100 {
		if v := g.IntN(2, 8); v < 2 || v > 8 {
			t.Fatalf("IntN out of range: %d", v)
		}
	}
	if v := g.IntN(5, 5); v != 5 {
		t.Fatalf("degenerate range: %d", v)
	}
}
