package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexStringAcceptsStringsAndNumbers(t *testing.T) {
	var v struct {
		ID   FlexString `json:"id"`
		Fare FlexString `json:"fare"`
		Gone FlexString `json:"gone"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"fare":"120.5","gone":null}`), &v))

	assert.Equal(t, "42", v.ID.String())
	fare, ok := v.Fare.Float()
	assert.True(t, ok)
	assert.InDelta(t, 120.5, fare, 1e-9)

	_, ok = v.Gone.Float()
	assert.False(t, ok)

	assert.Error(t, json.Unmarshal([]byte(`{"id":true}`), &v))
}
