// Package rank combines section scores into totals and orders proposals.
package rank

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/dgallion1/bidrank/internal/proposal"
)

// Weights are relative section weights. They need not sum to 1.
type Weights struct {
	Cost            float64 `json:"cost"`
	Technical       float64 `json:"technical"`
	PastPerformance float64 `json:"past_performance"`
}

// DefaultWeights favors technical merit.
func DefaultWeights() Weights {
	return Weights{Cost: 0.3, Technical: 0.4, PastPerformance: 0.3}
}

// Of returns the weight for a section.
func (w Weights) Of(s proposal.Section) float64 {
	switch s {
	case proposal.Cost:
		return w.Cost
	case proposal.Technical:
		return w.Technical
	case proposal.PastPerformance:
		return w.PastPerformance
	}
	return 0
}

// Sum is the normalizing denominator.
func (w Weights) Sum() float64 {
	return w.Cost + w.Technical + w.PastPerformance
}

// Validate rejects negative, non-finite, or all-zero weights.
func (w Weights) Validate() error {
	for _, s := range proposal.AllSections {
		v := w.Of(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %s is not finite", s)
		}
		if v < 0 {
			return fmt.Errorf("weight %s is negative: %g", s, v)
		}
	}
	sum := w.Sum()
	if sum <= 0 {
		return errors.New("weights sum to zero")
	}
	if math.IsInf(sum, 0) {
		return errors.New("weights sum overflows")
	}
	return nil
}

// ParseWeights decodes a weights document. Exactly the fields cost,
// technical and past_performance are recognized; anything else, or a
// missing field, is an error.
func ParseWeights(r io.Reader) (Weights, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Weights{}, fmt.Errorf("read weights: %w", err)
	}

	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return Weights{}, fmt.Errorf("decode weights: %w", err)
	}
	known := []string{"cost", "technical", "past_performance"}
	for _, key := range known {
		if _, ok := present[key]; !ok {
			return Weights{}, fmt.Errorf("weights: missing field %q", key)
		}
	}
	// encoding/json matches struct fields case-insensitively, so "COST"
	// would otherwise overwrite "cost".
	if len(present) != len(known) {
		for key := range present {
			if !slices.Contains(known, key) {
				return Weights{}, fmt.Errorf("weights: unknown field %q", key)
			}
		}
	}

	var w Weights
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return Weights{}, fmt.Errorf("decode weights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}
