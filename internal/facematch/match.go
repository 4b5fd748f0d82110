// Package facematch compares face descriptors produced in the browser
// (128 floats per face) by Euclidean distance.
package facematch

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// DefaultThreshold is the largest distance accepted as the same face.
const DefaultThreshold = 0.6

// MaxDescriptorLen bounds descriptors accepted from clients.
const MaxDescriptorLen = 1024

var (
	ErrEmptyDescriptor = errors.New("face descriptor is empty")
	ErrLengthMismatch  = errors.New("face descriptors differ in length")
)

// Descriptor is one face embedding.
type Descriptor []float64

// Validate rejects empty, oversized or non-finite descriptors.
func (d Descriptor) Validate() error {
	if len(d) == 0 {
		return ErrEmptyDescriptor
	}
	if len(d) > MaxDescriptorLen {
		return fmt.Errorf("face descriptor too long: %d values", len(d))
	}
	for i, v := range d {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("face descriptor value %d is not finite", i)
		}
	}
	return nil
}

// Encode serializes the descriptor for storage.
func (d Descriptor) Encode() (string, error) {
	raw, err := json.Marshal([]float64(d))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decode parses a stored descriptor.
func Decode(s string) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, fmt.Errorf("decode face descriptor: %w", err)
	}
	return d, d.Validate()
}

// Distance is the Euclidean distance between two descriptors.
func Distance(a, b Descriptor) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum), nil
}

// Candidate is an enrolled descriptor keyed by its owner.
type Candidate struct {
	Key        string
	Descriptor Descriptor
}

// Match is the closest candidate to a probe.
type Match struct {
	Key      string
	Distance float64
}

// Matcher finds the closest enrolled face under a threshold.
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a matcher; threshold <= 0 uses DefaultThreshold.
func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// Best scans the candidates linearly and returns the closest one whose
// distance is below the threshold. Candidates of a different length are ignored.
func (m Matcher) Best(probe Descriptor, candidates []Candidate) (Match, bool) {
	best := Match{Distance: math.Inf(1)}
	for _, c := range candidates {
		d, err := Distance(probe, c.Descriptor)
		if err != nil {
			continue
		}
		if d < best.Distance {
			best = Match{Key: c.Key, Distance: d}
		}
	}
	if best.Key == "" || best.Distance >= m.Threshold {
		return Match{}, false
	}
	return best, true
}
