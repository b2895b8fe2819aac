package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.out, got, tc.in)
		} else {
			assert.ErrorIs(t, err, ErrInvalidAmount, tc.in)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Money{Cents: 1205}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": 12.05}`, string(b))

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 3.456, "b": "7.1"}`), &in))
	assert.Equal(t, int64(346), in.A.Cents)
	assert.Equal(t, int64(710), in.B.Cents)

	assert.Error(t, json.Unmarshal([]byte(`{"a": "ten"}`), &in))

	// 2^64 + 100 cents would wrap to 100 if truncated to int64.
	var huge Money
	assert.ErrorIs(t, json.Unmarshal([]byte(`184467440737095517.16`), &huge), ErrInvalidAmount)
	assert.ErrorIs(t, json.Unmarshal([]byte(`"-184467440737095517.16"`), &huge), ErrInvalidAmount)
	assert.ErrorIs(t, json.Unmarshal([]byte(`1000000000.01`), &huge), ErrInvalidAmount)
	assert.Equal(t, int64(0), huge.Cents)

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &huge))
	assert.Equal(t, maxCents, huge.Cents)
	assert.NoError(t, huge.Validate())
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "$12.30", Money{Cents: 1230}.String())
	assert.Equal(t, "-$0.05", Money{Cents: -5}.String())
	assert.Equal(t, "$0.00", Money{}.String())
}
