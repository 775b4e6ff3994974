package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptional_ZeroValueIsAbsent(t *testing.T) {
	var o Optional
	assert.False(t, o.Valid())
	assert.Nil(t, o.Ptr())
	assert.InDelta(t, 50.0, o.Or(50), 1e-9)
}

func TestOptional_SomeKeepsZero(t *testing.T) {
	o := Some(0)
	v, ok := o.Get()
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
	assert.Equal(t, 0.0, o.Or(50))
}

func TestOptional_FromPtr(t *testing.T) {
	v := 12.5
	assert.Equal(t, Some(12.5), OptionalFromPtr(&v))
	assert.Equal(t, None(), OptionalFromPtr(nil))

	n := 7
	assert.Equal(t, Some(7), OptionalFromIntPtr(&n))
	assert.False(t, OptionalFromIntPtr(nil).Valid())
}

func TestOptional_JSON(t *testing.T) {
	type wrapper struct {
		A Optional `json:"a"`
		B Optional `json:"b"`
	}

	data, err := json.Marshal(wrapper{A: Some(42.5), B: None()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":42.5,"b":null}`, string(data))

	var got wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"a":null,"b":3}`), &got))
	assert.False(t, got.A.Valid())
	assert.Equal(t, Some(3), got.B)
}
