package utils

import (
	"testing"
	"time"

	"hrms_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     []string
	}{
		{"single day", "2025-03-10", "2025-03-10", []string{"2025-03-10"}},
		{"three days", "2025-03-10", "2025-03-12", []string{"2025-03-10", "2025-03-11", "2025-03-12"}},
		{"month boundary", "2025-02-27", "2025-03-01", []string{"2025-02-27", "2025-02-28", "2025-03-01"}},
		{"leap year", "2024-02-28", "2024-03-01", []string{"2024-02-28", "2024-02-29", "2024-03-01"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DateRange(tc.from, tc.to)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDateRangeRejectsBadInput(t *testing.T) {
	_, err := DateRange("2025-03-12", "2025-03-10")
	assert.Error(t, err)

	_, err = DateRange("12/03/2025", "2025-03-10")
	assert.Error(t, err)

	_, err = DateRange("2025-03-10", "")
	assert.Error(t, err)
}

func TestDaySpan(t *testing.T) {
	tests := []struct {
		from, to string
		want     int
	}{
		{"2025-03-10", "2025-03-10", 1},
		{"2025-03-10", "2025-03-16", 7},
		{"2024-02-28", "2024-03-01", 3},
		{"2025-01-01", "2025-12-31", 365},
		{"0001-01-01", "9999-12-31", 3652059},
	}
	for _, tc := range tests {
		got, err := DaySpan(tc.from, tc.to)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s..%s", tc.from, tc.to)
	}

	_, err := DaySpan("2025-03-12", "2025-03-10")
	assert.Error(t, err)
	_, err = DaySpan("2025-03-10", "tomorrow")
	assert.Error(t, err)
}

func TestIsWeekend(t *testing.T) {
	for key, want := range map[string]bool{
		"2025-03-08": true,  // Saturday
		"2025-03-09": true,  // Sunday
		"2025-03-10": false, // Monday
		"2025-03-14": false, // Friday
	} {
		got, err := IsWeekend(key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
}

func TestDayKeyUsesLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	instant := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-03-10", DayKey(instant, time.UTC))
	assert.Equal(t, "2025-03-11", DayKey(instant, ist))
}

func TestRoundTenth(t *testing.T) {
	assert.Equal(t, 4.5, RoundTenth(4.45000001))
	assert.Equal(t, 0.3, RoundTenth(0.1+0.2))
	assert.Equal(t, -1.0, RoundTenth(-0.96))
}

func TestParseUint(t *testing.T) {
	n, err := ParseUint(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, uint(42), n)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, err := ParseUint(bad)
		assert.Error(t, err, bad)
	}
}

func TestToLeaveHistoryItem(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2025, 3, 5, 4, 48, 0, 0, time.UTC)

	item := ToLeaveHistoryItem(models.LeaveApplication{
		ID:                "abc",
		EmployeeID:        7,
		FromDate:          "2025-03-10",
		ToDate:            "2025-03-12",
		LeaveType:         models.LeaveTypeLeave,
		ApplicationStatus: models.ApplicationApproved,
		TotalDays:         3,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}, ist)

	assert.Equal(t, "Mar 05 2025 10:18 AM", item.CreatedAt)
	assert.Equal(t, "Mar 05, 2025", item.UpdatedDate)
	assert.Equal(t, "10:18 AM", item.UpdatedTime)
	assert.Equal(t, "Approved", item.StatusLabel)
	assert.Nil(t, item.Employee)
}
