package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestShannonEntropy_DGABoundary covers invariant 11: the DGA detector does
// not fire for www.google.com (low-entropy leftmost label) and does fire
// for a high-entropy, long leftmost label.
func TestShannonEntropy_DGABoundary(t *testing.T) {
	low := LeftmostLabel("www.google.com")
	assert.Equal(t, "www", low)
	assert.Less(t, ShannonEntropy(low), dgaEntropyThreshold)

	high := LeftmostLabel("kq7x1p8v2m9rbzwf.example")
	assert.GreaterOrEqual(t, len(high), dgaMinLabelLen)
	assert.Greater(t, ShannonEntropy(high), dgaEntropyThreshold)
}

func TestShannonEntropy_EmptyStringIsZero(t *testing.T) {
	assert.Equal(t, 0.0, ShannonEntropy(""))
}

func TestShannonEntropy_SingleRepeatedCharIsZero(t *testing.T) {
	assert.Equal(t, 0.0, ShannonEntropy("aaaaaaaaaaaa"))
}

func TestLeftmostLabel_NoDotsReturnsWholeString(t *testing.T) {
	assert.Equal(t, "localhost", LeftmostLabel("localhost"))
}
