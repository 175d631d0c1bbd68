package types

import (
	"testing"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1"},
		{"2.675", "2.68"},
		{"0.125", "0.13"},
		{"100", "100"},
		{"-1.005", "-1.01"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RoundMoney(decimal.RequireFromString(tt.in))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "RoundMoney(%s) = %s, want %s", tt.in, got, tt.want)
		})
	}
}

func TestRoundRate(t *testing.T) {
	got := RoundRate(decimal.RequireFromString("0.01234565"))
	assert.Equal(t, "0.012346", got.StringFixed(RatePrecision))
}

func TestPercentageOf(t *testing.T) {
	got := PercentageOf(decimal.NewFromInt(1000), decimal.NewFromInt(10))
	assert.True(t, got.Equal(decimal.NewFromInt(100)))

	got = PercentageOf(decimal.RequireFromString("19.99"), decimal.RequireFromString("7.5"))
	assert.Equal(t, "1.49925", got.String())
}

func TestAddSubtractMultiply(t *testing.T) {
	sum := Add(decimal.RequireFromString("0.10"), decimal.RequireFromString("0.20"))
	assert.True(t, sum.Equal(decimal.RequireFromString("0.30")))
	assert.True(t, Add().IsZero())

	diff := Subtract(decimal.RequireFromString("0.30"), decimal.RequireFromString("0.10"))
	assert.True(t, diff.Equal(decimal.RequireFromString("0.20")))

	prod := Multiply(decimal.RequireFromString("1100.00"), decimal.RequireFromString("0.912345"))
	assert.Equal(t, "1003.5795", prod.String())
}

func TestValidateScale(t *testing.T) {
	tests := []struct {
		in     string
		places int32
		ok     bool
	}{
		{"18", PercentPrecision, true},
		{"18.13", PercentPrecision, true},
		{"18.10", PercentPrecision, true},
		{"18.125", PercentPrecision, false},
		{"10.005", MoneyPrecision, false},
		{"0.000001", RatePrecision, true},
		{"0.0000001", RatePrecision, false},
	}

	for _, tt := range tests {
		err := ValidateScale("value", decimal.RequireFromString(tt.in), tt.places)
		if tt.ok {
			assert.NoError(t, err, tt.in)
			continue
		}
		assert.True(t, ierr.IsValidation(err), tt.in)
	}
}
