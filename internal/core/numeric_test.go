package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		name    string
		in      any
		want    float64
		wantErr bool
	}{
		{"nil is absent", nil, 0, false},
		{"float", 6.5, 6.5, false},
		{"int", 7, 7, false},
		{"int64", int64(12), 12, false},
		{"json number", json.Number("3.25"), 3.25, false},
		{"currency string", "$4.00", 4, false},
		{"currency with spaces", "  $ 4.10 ", 4.1, false},
		{"decimal comma", "2,50", 2.5, false},
		{"decimal comma one digit", "2,5", 2.5, false},
		{"thousands comma", "1,234", 1234, false},
		{"thousands and decimal", "$1,234.50", 1234.5, false},
		{"plain string", "12", 12, false},
		{"zero", "0", 0, false},
		{"empty string", "", 0, true},
		{"garbage", "abc", 0, true},
		{"negative", -3.0, 0, true},
		{"negative string", "-3", 0, true},
		{"nan", math.NaN(), 0, true},
		{"inf", math.Inf(1), 0, true},
		{"inf string", "Infinity", 0, true},
		{"bad json number", json.Number("x"), 0, true},
		{"bool", true, 0, true},
		{"object", map[string]any{"a": 1}, 0, true},
		{"list", []any{1}, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseNumeric(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedValue))
			} else {
				require.NoError(t, err)
			}
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestNormalizeNumericIsTotal(t *testing.T) {
	inputs := []any{
		nil, "", " ", "$", "$$", ",", ".", "1,2,3", "1.2.3", "--1", "+5",
		math.NaN(), math.Inf(-1), float32(1.5), uint(3), struct{}{}, []string{"1"},
	}
	for _, in := range inputs {
		var got float64
		require.NotPanics(t, func() { got = NormalizeNumeric(in) }, "input %#v", in)
		assert.False(t, math.IsNaN(got) || math.IsInf(got, 0), "input %#v produced %v", in, got)
		assert.GreaterOrEqual(t, got, 0.0, "input %#v", in)
	}
}
