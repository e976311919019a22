package models

import (
	"testing"
	"time"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{CampaignStatusDraft, CampaignStatusActive, true},
		{CampaignStatusActive, CampaignStatusPaused, true},
		{CampaignStatusPaused, CampaignStatusActive, true},
		{CampaignStatusActive, CampaignStatusCompleted, true},
		{CampaignStatusPaused, CampaignStatusCompleted, true},
		{CampaignStatusDraft, CampaignStatusCompleted, true},

		// Invalid transitions
		{CampaignStatusDraft, CampaignStatusPaused, false},
		{CampaignStatusCompleted, CampaignStatusActive, false},
		{CampaignStatusCompleted, CampaignStatusPaused, false},
		{CampaignStatusCompleted, CampaignStatusDraft, false},
		{CampaignStatusActive, CampaignStatusDraft, false},
		{CampaignStatusPaused, CampaignStatusDraft, false},
		{"nonexistent", CampaignStatusActive, false},
		{CampaignStatusDraft, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusCompleted,
	}

	for _, status := range allStatuses {
		if _, ok := ValidCampaignTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidCampaignTransitions map", status)
		}
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	transitions := ValidCampaignTransitions[CampaignStatusCompleted]
	if len(transitions) != 0 {
		t.Errorf("completed should have no transitions, got %v", transitions)
	}
}

func TestDurationDays(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		end      *time.Time
		expected int
	}{
		{"no end date uses default", nil, 30},
		{"ten days", ptrTime(start.AddDate(0, 0, 10)), 10},
		{"partial day rounds up", ptrTime(start.Add(36 * time.Hour)), 2},
		{"same day clamps to one", ptrTime(start), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Campaign{StartDate: start, EndDate: tt.end}
			if got := c.DurationDays(30); got != tt.expected {
				t.Errorf("DurationDays = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestDaysActive(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := &Campaign{StartDate: start}

	if got := c.DaysActive(start.AddDate(0, 0, 5)); got != 5 {
		t.Errorf("DaysActive after 5 days = %d, want 5", got)
	}
	if got := c.DaysActive(start); got != 1 {
		t.Errorf("DaysActive at start = %d, want 1", got)
	}
	if got := c.DaysActive(start.Add(time.Hour)); got != 1 {
		t.Errorf("DaysActive after one hour = %d, want 1", got)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
