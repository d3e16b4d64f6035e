package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

func TestParams(t *testing.T) {
	params := Params{}.
		With("fast", fixed.FromInt(5, 0)).
		With("slow", fixed.MustParse("20.5"))

	v, ok := params.Get("slow")
	assert.True(t, ok)
	assert.True(t, v.Eq(fixed.MustParse("20.5")))

	_, ok = params.Get("missing")
	assert.False(t, ok)
	assert.True(t, params.GetOr("missing", fixed.One).Eq(fixed.One))
	assert.Equal(t, 5, params.GetInt("fast", 0))
	assert.Equal(t, 7, params.GetInt("missing", 7))

	assert.Equal(t, "fast=5,slow=20.5", params.Key())

	updated := params.With("fast", fixed.FromInt(8, 0))
	assert.Equal(t, "fast=8,slow=20.5", updated.Key())
	assert.Equal(t, "fast=5,slow=20.5", params.Key(), "With must not modify the receiver")
}

func TestParams_GetIntRoundsHalfToEven(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"20.5", 20},
		{"21.5", 22},
		{"2.6", 3},
		{"2.4", 2},
		{"-1.5", -2},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			params := Params{}.With("window", fixed.MustParse(tt.value))
			assert.Equal(t, tt.want, params.GetInt("window", 0))
		})
	}
}
