package facematch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	d, err := Distance(Descriptor{0, 0}, Descriptor{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-9)

	_, err = Distance(Descriptor{1}, Descriptor{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestMatcherBest(t *testing.T) {
	m := NewMatcher(0)
	assert.Equal(t, DefaultThreshold, m.Threshold)

	candidates := []Candidate{
		{Key: "far", Descriptor: Descriptor{1, 1, 1}},
		{Key: "near", Descriptor: Descriptor{0.1, 0.1, 0.1}},
		{Key: "short", Descriptor: Descriptor{0}},
	}

	got, ok := m.Best(Descriptor{0.1, 0.1, 0.2}, candidates)
	require.True(t, ok)
	assert.Equal(t, "near", got.Key)
	assert.InDelta(t, 0.1, got.Distance, 1e-9)

	_, ok = m.Best(Descriptor{5, 5, 5}, candidates)
	assert.False(t, ok, "nothing under threshold")

	_, ok = m.Best(Descriptor{0, 0, 0}, nil)
	assert.False(t, ok)
}

func TestEncodeDecode(t *testing.T) {
	d := Descriptor{0.25, -0.5, 1}
	s, err := d.Encode()
	require.NoError(t, err)

	got, err := Decode(s)
	require.NoError(t, err)
	assert.Equal(t, d, got)

	_, err = Decode("[]")
	assert.ErrorIs(t, err, ErrEmptyDescriptor)
	_, err = Decode("not json")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.Error(t, Descriptor{math.NaN()}.Validate())
	assert.Error(t, make(Descriptor, MaxDescriptorLen+1).Validate())
	assert.NoError(t, make(Descriptor, 128).Validate())
}
