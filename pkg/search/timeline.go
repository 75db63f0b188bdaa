package search

import (
	"context"
	"fmt"
	"time"

	"github.com/ferdian/memoir/pkg/memory"
)

// Timeline is a chronological view of stored activity, grouped by day and
// then by session within the day.
type Timeline struct {
	Days []TimelineDay `json:"days"`
}

// TimelineDay groups one calendar day (UTC).
type TimelineDay struct {
	Date     string            `json:"date"`
	Sessions []TimelineSession `json:"sessions"`
}

// TimelineSession groups one session's entries within a day.
type TimelineSession struct {
	SessionID string                 `json:"memory_session_id"`
	Project   string                 `json:"project"`
	Entries   []memory.TimelineEntry `json:"entries"`
}

// BuildTimeline fetches and groups timeline entries. Days and sessions
// appear in first-activity order; entries stay chronological.
func (o *Orchestrator) BuildTimeline(ctx context.Context, project string, from, to *time.Time, limit int) (*Timeline, error) {
	entries, err := o.store.TimelineEntries(ctx, project, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build timeline: %w", err)
	}

	timeline := &Timeline{}
	dayIdx := make(map[string]int)

	for _, e := range entries {
		date := e.CreatedAt.UTC().Format("2006-01-02")

		di, ok := dayIdx[date]
		if !ok {
			timeline.Days = append(timeline.Days, TimelineDay{Date: date})
			di = len(timeline.Days) - 1
			dayIdx[date] = di
		}
		day := &timeline.Days[di]

		si := -1
		for i := range day.Sessions {
			if day.Sessions[i].SessionID == e.SessionID {
				si = i
				break
			}
		}
		if si == -1 {
			day.Sessions = append(day.Sessions, TimelineSession{
				SessionID: e.SessionID,
				Project:   e.Project,
			})
			si = len(day.Sessions) - 1
		}

		day.Sessions[si].Entries = append(day.Sessions[si].Entries, e)
	}

	return timeline, nil
}
