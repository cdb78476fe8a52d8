package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSample(t *testing.T) {
	s, err := NewSample(57.64911, 10.40744)
	require.NoError(t, err)
	assert.Equal(t, "u4pruyd", s.Geohash())

	_, err = NewSample(91, 0)
	assert.ErrorIs(t, err, ErrInvalidLatitude)

	_, err = NewSample(0, -181)
	assert.ErrorIs(t, err, ErrInvalidLongitude)
}
