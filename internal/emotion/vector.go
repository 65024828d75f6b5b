package emotion

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrInvalidIntensity = errors.New("invalid intensity")
)

// Vector holds one intensity in [0,1] per Kind, indexed by slot.
type Vector [NumKinds]float64

// Pair is a named intensity on the 0-100 percentage scale.
type Pair struct {
	Name      string
	Intensity float64
}

// Rejection records a pair that BuildVector skipped. Index is its position in the input.
type Rejection struct {
	Index int
	Pair  Pair
	Err   error
}

func (v Vector) Get(k Kind) float64 {
	if !k.Valid() {
		return 0
	}
	return v[k]
}

func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func (v Vector) Max() float64 {
	top := v[0]
	for _, x := range v[1:] {
		if x > top {
			top = x
		}
	}
	return top
}

// Clamp bounds every slot to [0,1]. NaN slots become 0.
func (v Vector) Clamp() Vector {
	for i, x := range v {
		if math.IsNaN(x) {
			v[i] = 0
			continue
		}
		v[i] = clamp(x, 0, 1)
	}
	return v
}

func (v Vector) Slice() []float64 {
	out := make([]float64, NumKinds)
	copy(out, v[:])
	return out
}

func (v Vector) Rounded(precision int) Vector {
	for i, x := range v {
		v[i] = round(x, precision)
	}
	return v
}

// Percentages maps each non-zero slot to its canonical name and integer percent.
func (v Vector) Percentages() map[string]int {
	out := make(map[string]int)
	for i, x := range v {
		if x > 0 {
			out[kindNames[i]] = int(math.Round(x * 100))
		}
	}
	return out
}

// FromSlice copies exactly NumKinds values and clamps them.
func FromSlice(values []float64) (Vector, error) {
	var v Vector
	if len(values) != NumKinds {
		return v, fmt.Errorf("%w: vector has %d slots, want %d", ErrShapeMismatch, len(values), NumKinds)
	}
	copy(v[:], values)
	return v.Clamp(), nil
}

// BuildVector resolves each pair and writes intensity/100 into its slot.
// Out-of-range intensities, infinities included, are clamped to [0,100]; the last
// pair for a kind wins. NaN is rejected.
func BuildVector(pairs []Pair) (Vector, []Rejection) {
	v, _, rejected := BuildVectorSet(pairs)
	return v, rejected
}

// BuildVectorSet is BuildVector that also reports which kinds were set, including
// kinds explicitly set to zero.
func BuildVectorSet(pairs []Pair) (Vector, KindSet, []Rejection) {
	var (
		v        Vector
		set      KindSet
		rejected []Rejection
	)
	for i, p := range pairs {
		k, err := ResolveKind(p.Name)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Pair: p, Err: err})
			continue
		}
		if math.IsNaN(p.Intensity) {
			rejected = append(rejected, Rejection{Index: i, Pair: p, Err: fmt.Errorf("%w: %v", ErrInvalidIntensity, p.Intensity)})
			continue
		}
		v[k] = clamp(p.Intensity, 0, 100) / 100.0
		set = set.With(k)
	}
	return v, set, rejected
}

// MergeVectors computes the per-slot weighted average. A nil weights slice means
// uniform weights. Weights are normalized to sum to 1; a non-positive total falls
// back to uniform.
func MergeVectors(vectors []Vector, weights []float64) (Vector, error) {
	var merged Vector
	if weights != nil && len(weights) != len(vectors) {
		return merged, fmt.Errorf("%w: %d vectors, %d weights", ErrShapeMismatch, len(vectors), len(weights))
	}
	if len(vectors) == 0 {
		return merged, nil
	}

	norm := uniformWeights(len(vectors))
	if weights != nil {
		total := 0.0
		for _, w := range weights {
			total += w
		}
		if total > 0 && !math.IsInf(total, 0) {
			for i, w := range weights {
				norm[i] = w / total
			}
		}
	}

	for i, vec := range vectors {
		for slot, x := range vec {
			merged[slot] += x * norm[i]
		}
	}
	return merged.Clamp(), nil
}

// NormalizeMax scales v so its peak slot is exactly 1. All-zero input is returned as is.
func NormalizeMax(v Vector) Vector {
	top := v.Max()
	if top <= 0 {
		return v
	}
	for i := range v {
		v[i] /= top
	}
	return v
}

// Overlay returns base with the slots of top named in set written over it.
func Overlay(base, top Vector, set KindSet) Vector {
	for i := range top {
		if set.Has(Kind(i)) {
			base[i] = top[i]
		}
	}
	return base
}

func uniformWeights(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.0 / float64(n)
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}
