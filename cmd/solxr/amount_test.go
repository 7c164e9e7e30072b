package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"1", 1_000_000_000},
		{"1.5", 1_500_000_000},
		{"1.75", 1_750_000_000},
		{"0.000000001", 1},
		{".5", 500_000_000},
		{"2.", 2_000_000_000},
		{" 80 ", 80_000_000_000},
		{"18446744073.709551615", 18_446_744_073_709_551_615},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		".",
		"-1",
		"abc",
		"1.2.3",
		"1.0000000001",
		"18446744073.709551616",
		"99999999999999999999",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := parseAmount(in)
			assert.Error(t, err)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", formatAmount(0))
	assert.Equal(t, "1.5", formatAmount(1_500_000_000))
	assert.Equal(t, "0.000000001", formatAmount(1))
	assert.Equal(t, "80", formatAmount(80_000_000_000))

	for _, v := range []uint64{1, 123_456_789, 1_750_000_000, 42_000_000_001} {
		back, err := parseAmount(formatAmount(v))
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}
