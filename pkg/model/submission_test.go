package model

import (
	"testing"
	"time"
)

func TestParseCycleDate(t *testing.T) {
	got, err := ParseCycleDate("2024-11-23")
	if err != nil {
		t.Fatalf("ParseCycleDate: %v", err)
	}
	want := time.Date(2024, time.November, 23, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseCycleDate = %v, want %v", got, want)
	}
	if got.Format(DateLayout) != "2024-11-23" {
		t.Errorf("round trip = %q", got.Format(DateLayout))
	}
}

func TestParseCycleDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "2024-13-01", "2024-02-30", "23/11/2024", "2024-1-1"} {
		if _, err := ParseCycleDate(s); err == nil {
			t.Errorf("ParseCycleDate(%q) should fail", s)
		}
	}
}
