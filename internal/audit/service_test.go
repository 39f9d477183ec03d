package audit

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	rows     []TimelineRow
	lastCall EventQuery
}

func (s *stubTimelineRepo) ListEvents(ctx context.Context, q EventQuery) ([]TimelineRow, error) {
	s.lastCall = q
	if q.Limit > 0 && len(s.rows) > q.Limit {
		return s.rows[:q.Limit], nil
	}
	return s.rows, nil
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{
		rows: []TimelineRow{
			mockRow("2024-03-10T10:00:00Z", "admin-uid", "USER_CREATED", "a@b.com"),
			mockRow("2024-03-09T09:00:00Z", "admin-uid", "USER_SYNCED", "a@b.com"),
			mockRow("2024-03-08T08:00:00Z", "bootstrap", "INITIAL_ADMIN_CREATED", "root@b.com"),
		},
	}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{
		From:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Page:     1,
		PageSize: 2,
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
	require.Equal(t, 3, repo.lastCall.Limit)
	require.Zero(t, repo.lastCall.Offset)
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 500, Type: "USER_CREATED"})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, result.Paging.PageSize)
	require.Equal(t, 2, result.Paging.PrevPage)
	require.False(t, result.Paging.HasNext)
	require.NotNil(t, result.Rows)
	require.Equal(t, 2*maxPageSize, repo.lastCall.Offset)
	require.Equal(t, "USER_CREATED", repo.lastCall.Type)

	result, err = svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Equal(t, defaultPageSize, result.Paging.PageSize)
	require.Equal(t, 1, result.Paging.Page)
}

func TestServiceExportReturnsAllRows(t *testing.T) {
	repo := &stubTimelineRepo{
		rows: []TimelineRow{
			mockRow("2024-03-10T10:00:00Z", "admin-uid", "USER_ROLE_UPDATED", "a@b.com"),
			mockRow("2024-03-09T09:00:00Z", "admin-uid", "USER_CREATED", "a@b.com"),
		},
	}
	svc := NewService(repo)
	rows, err := svc.Export(context.Background(), TimelineFilters{From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), PageSize: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Zero(t, repo.lastCall.Limit)
	require.Empty(t, repo.lastCall.Actor)
}

func TestServiceWithoutRepository(t *testing.T) {
	_, err := NewService(nil).Timeline(context.Background(), TimelineFilters{})
	require.Error(t, err)
}

func TestExporterWriteCSV(t *testing.T) {
	active := true
	row := mockRow("2024-03-10T10:00:00Z", "admin-uid", "USER_ROLE_UPDATED", "a@b.com")
	row.Role = "admin"
	row.Active = &active
	row.Modules = []string{"dashboard", "billing"}

	out, err := NewExporter().WriteCSV([]TimelineRow{row})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, []string{"2024-03-10T10:00:00Z", row.ID, "USER_ROLE_UPDATED", "admin-uid", "uid-a@b.com", "a@b.com", "admin", "true", "dashboard|billing"}, records[1])
}

func mockRow(ts, actor, eventType, email string) TimelineRow {
	tval, _ := time.Parse(time.RFC3339, ts)
	return TimelineRow{
		ID:          "evt-" + ts,
		At:          tval,
		Actor:       actor,
		Type:        eventType,
		TargetID:    "uid-" + email,
		TargetEmail: email,
		Modules:     []string{"dashboard"},
	}
}
