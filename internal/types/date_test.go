package types

import (
	"testing"
	"time"
)

func TestNextBillingDate(t *testing.T) {
	tests := []struct {
		name      string
		from      time.Time
		frequency BillingFrequency
		want      time.Time
		wantErr   bool
	}{
		{
			name:      "weekly",
			from:      time.Date(2025, time.March, 28, 0, 0, 0, 0, time.UTC),
			frequency: BillingFrequencyWeekly,
			want:      time.Date(2025, time.April, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly simple",
			from:      time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
			frequency: BillingFrequencyMonthly,
			want:      time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly clamps to end of february",
			from:      time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC),
			frequency: BillingFrequencyMonthly,
			want:      time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly clamps to leap day",
			from:      time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
			frequency: BillingFrequencyMonthly,
			want:      time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly crosses year",
			from:      time.Date(2024, time.December, 15, 9, 30, 0, 0, time.UTC),
			frequency: BillingFrequencyMonthly,
			want:      time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name:      "quarterly",
			from:      time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC),
			frequency: BillingFrequencyQuarterly,
			want:      time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "half-yearly",
			from:      time.Date(2025, time.August, 31, 0, 0, 0, 0, time.UTC),
			frequency: BillingFrequencyHalfYearly,
			want:      time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "yearly from leap day",
			from:      time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
			frequency: BillingFrequencyYearly,
			want:      time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "one-time has no next date",
			from:      time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
			frequency: BillingFrequencyOneTime,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextBillingDate(tt.from, tt.frequency)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NextBillingDate() expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NextBillingDate() unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextBillingDate() = %v, want %v", got, tt.want)
			}
		})
	}
}
