package delivery

import (
	"testing"
	"time"
)

func TestRetryDelaySchedule(t *testing.T) {
	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, 30 * time.Second},
		{2, 60 * time.Second},
		{3, 5 * time.Minute},
		{4, 15 * time.Minute},
		{5, time.Hour},
		// anything past the table is capped at the last entry
		{6, time.Hour},
		{99, time.Hour},
	}
	for _, tc := range cases {
		if got := RetryDelay(tc.retryCount, DefaultRetrySchedule); got != tc.want {
			t.Errorf("RetryDelay(%d) = %v, want %v", tc.retryCount, got, tc.want)
		}
	}
}

func TestScheduleMatchesRetryCap(t *testing.T) {
	if len(DefaultRetrySchedule) != MaxRetries {
		t.Fatalf("schedule has %d entries, cap is %d", len(DefaultRetrySchedule), MaxRetries)
	}
}

func TestIsSuccess(t *testing.T) {
	for _, code := range []int{200, 201, 204, 299} {
		if !IsSuccess(code) {
			t.Errorf("IsSuccess(%d) = false", code)
		}
	}
	for _, code := range []int{0, 199, 301, 400, 404, 500, 503} {
		if IsSuccess(code) {
			t.Errorf("IsSuccess(%d) = true", code)
		}
	}
}
