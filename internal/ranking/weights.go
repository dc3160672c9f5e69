package ranking

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Upper bounds of the sub-scores before weighting. Base and location are
// bounded by construction (1.0 and LocationBoost).
const (
	PersonalizedCap = 0.3
	TrendingCap     = 0.2
	SeasonalCap     = 0.2
	PopularityCap   = 0.25

	LocationBoost = 0.15
)

// Weights are the factors of the final weighted sum. They must add up to 1.
type Weights struct {
	Base         float64 `json:"base"`
	Personalized float64 `json:"personalized"`
	Trending     float64 `json:"trending"`
	Location     float64 `json:"location"`
	Seasonal     float64 `json:"seasonal"`
	Popularity   float64 `json:"popularity"`
}

func DefaultWeights() Weights {
	return Weights{
		Base:         0.4,
		Personalized: 0.2,
		Trending:     0.15,
		Location:     0.1,
		Seasonal:     0.1,
		Popularity:   0.05,
	}
}

func (w Weights) values() [6]float64 {
	return [6]float64{w.Base, w.Personalized, w.Trending, w.Location, w.Seasonal, w.Popularity}
}

// Sum returns the total of all six weights.
func (w Weights) Sum() float64 {
	var s float64
	for _, v := range w.values() {
		s += v
	}
	return s
}

// Validate rejects negative weights and sets that do not sum to 1.
func (w Weights) Validate() error {
	for _, v := range w.values() {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("ranking weights must be non-negative, got %v", v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("ranking weights must sum to 1, got %.6f", sum)
	}
	return nil
}

// ParseWeights reads six comma-separated weights in the order base,
// personalized, trending, location, seasonal, popularity.
func ParseWeights(s string) (Weights, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return Weights{}, fmt.Errorf("ranking weights: want 6 values, got %d", len(parts))
	}
	var v [6]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Weights{}, fmt.Errorf("ranking weights: value %d: %w", i+1, err)
		}
		v[i] = f
	}
	w := Weights{Base: v[0], Personalized: v[1], Trending: v[2], Location: v[3], Seasonal: v[4], Popularity: v[5]}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// String formats w the way ParseWeights reads it.
func (w Weights) String() string {
	vals := w.values()
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
