package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsOverdue(t *testing.T) {
	now := time.Date(2024, 11, 10, 15, 30, 0, 0, time.UTC)
	today := time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	lateYesterday := time.Date(2024, 11, 9, 23, 59, 0, 0, time.UTC)

	cases := []struct {
		name      string
		scheduled *time.Time
		stage     Stage
		want      bool
	}{
		{"today is not overdue", &today, StageNew, false},
		{"yesterday is overdue", &yesterday, StageNew, true},
		{"time of day ignored", &lateYesterday, StageInProgress, true},
		{"repaired never overdue", &yesterday, StageRepaired, false},
		{"scrap never overdue", &yesterday, StageScrap, false},
		{"no date never overdue", nil, StageNew, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsOverdue(tc.scheduled, tc.stage, now))
		})
	}
}

func TestIsOverdueUsesUTCDates(t *testing.T) {
	// 01:00 on the 11th in UTC+2 is still the 10th in UTC.
	east := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, 11, 11, 1, 0, 0, 0, east)
	scheduled := time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC)

	assert.False(t, IsOverdue(&scheduled, StageNew, now))
	assert.True(t, IsOverdue(&scheduled, StageNew, now.Add(2*time.Hour)))
}

func TestStage(t *testing.T) {
	assert.True(t, StageNew.Valid())
	assert.False(t, Stage("done").Valid())
	assert.True(t, StageScrap.IsTerminal())
	assert.True(t, StageRepaired.IsTerminal())
	assert.False(t, StageInProgress.IsTerminal())
	assert.Equal(t, []Stage{StageNew, StageInProgress, StageRepaired, StageScrap}, AllStages())
}

func TestRequestPatchApply(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	r := MaintenanceRequest{ID: "r1", Subject: "Leak", Stage: StageNew, Priority: PriorityLow, ScheduledDate: &day}

	subject := "Oil leak"
	high := PriorityHigh
	var cleared *time.Time
	RequestPatch{Subject: &subject, Priority: &high, ScheduledDate: &cleared}.Apply(&r)

	assert.Equal(t, "Oil leak", r.Subject)
	assert.Equal(t, PriorityHigh, r.Priority)
	assert.Nil(t, r.ScheduledDate)
	assert.Equal(t, StageNew, r.Stage)
}

func TestCloneDoesNotShareDate(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	r := MaintenanceRequest{ID: "r1", ScheduledDate: &day}
	c := r.Clone()
	*c.ScheduledDate = day.AddDate(0, 0, 1)
	assert.Equal(t, day, *r.ScheduledDate)
}
