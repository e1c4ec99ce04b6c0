package types_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/disambig/pkg/types"
)

func TestUsedBy_AddIsIdempotent(t *testing.T) {
	var u types.UsedBy

	assert.True(t, u.Add("GetOverdue"))
	assert.False(t, u.Add("GetOverdue"))
	assert.True(t, u.Add("SumTotals"))
	assert.False(t, u.Add(""))

	assert.Equal(t, []string{"GetOverdue", "SumTotals"}, u.Items())
	assert.Equal(t, 2, u.Len())
}

func TestUsedBy_CloneIsIndependent(t *testing.T) {
	u := types.NewUsedBy("a", "b")
	c := u.Clone()
	c.Add("c")

	assert.Equal(t, 2, u.Len())
	assert.False(t, u.Contains("c"))
	assert.True(t, c.Contains("c"))
}

func TestUsedBy_JSON(t *testing.T) {
	var empty types.UsedBy
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	var u types.UsedBy
	require.NoError(t, json.Unmarshal([]byte(`["x","y","x"]`), &u))
	assert.Equal(t, []string{"x", "y"}, u.Items())
}

func TestUsedBy_Equal(t *testing.T) {
	assert.True(t, types.NewUsedBy("a", "b").Equal(types.NewUsedBy("a", "b")))
	assert.False(t, types.NewUsedBy("a", "b").Equal(types.NewUsedBy("b", "a")))
	assert.True(t, types.UsedBy{}.Equal(types.NewUsedBy()))
}
