package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteer-hub/internal/model"
)

func record(status model.ParticipationStatus, attendance model.AttendanceStatus) model.ParticipationHistory {
	return model.ParticipationHistory{Status: status, Attendance: attendance}
}

func repeat(n int, r model.ParticipationHistory) []model.ParticipationHistory {
	out := make([]model.ParticipationHistory, n)
	for i := range out {
		out[i] = r
	}
	return out
}

func TestComputeReliability_Empty(t *testing.T) {
	st := ComputeReliability(nil)
	assert.Equal(t, 0, st.Score)
	assert.Equal(t, 0, st.TotalRecords)
}

func TestComputeReliability_TenCompletedIsPerfect(t *testing.T) {
	records := repeat(10, record(model.ParticipationCompleted, model.AttendancePresent))
	for i := range records {
		records[i].HoursWorked = 2.25
	}

	st := ComputeReliability(records)
	assert.Equal(t, 100, st.Score)
	assert.Equal(t, 100.0, st.AttendanceRate)
	assert.Equal(t, 100.0, st.CompletionRate)
	assert.Equal(t, 22.5, st.TotalHours)
}

func TestComputeReliability_Mixed(t *testing.T) {
	records := []model.ParticipationHistory{
		record(model.ParticipationCompleted, model.AttendancePresent),
		record(model.ParticipationCompleted, model.AttendanceLate),
		record(model.ParticipationNoShow, model.AttendanceAbsent),
		record(model.ParticipationConfirmed, model.AttendancePresent),
	}
	// 0.4·75 + 0.6·50 − 10 = 50
	st := ComputeReliability(records)
	assert.Equal(t, 50, st.Score)
	assert.Equal(t, 3, st.Attended)
	assert.Equal(t, 2, st.Completed)
	assert.Equal(t, 1, st.NoShows)
}

func TestComputeReliability_ExperienceBonus(t *testing.T) {
	records := append(
		repeat(4, record(model.ParticipationCompleted, model.AttendancePresent)),
		record(model.ParticipationNoShow, model.AttendanceAbsent),
	)
	// 0.4·80 + 0.6·80 − 10 + 5 = 75
	assert.Equal(t, 75, ComputeReliability(records).Score)
}

func TestComputeReliability_Bounds(t *testing.T) {
	assert.Equal(t, 0, ComputeReliability(repeat(3, record(model.ParticipationNoShow, model.AttendanceAbsent))).Score)

	statuses := []model.ParticipationStatus{
		model.ParticipationCompleted, model.ParticipationNoShow, model.ParticipationConfirmed,
	}
	attendances := []model.AttendanceStatus{
		model.AttendancePresent, model.AttendanceAbsent, model.AttendancePending,
	}
	for n := 1; n <= 12; n++ {
		for _, st := range statuses {
			for _, at := range attendances {
				score := ComputeReliability(repeat(n, record(st, at))).Score
				assert.GreaterOrEqual(t, score, 0)
				assert.LessOrEqual(t, score, 100)
			}
		}
	}
}

func TestMonthlyTrends(t *testing.T) {
	now := time.Date(2024, 12, 20, 10, 0, 0, 0, time.UTC)
	at := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 9, 0, 0, 0, time.UTC) }

	records := []model.ParticipationHistory{
		{Status: model.ParticipationCompleted, ParticipationDate: at(2024, 11, 3), HoursWorked: 2, PerformanceRating: intPtr(4)},
		{Status: model.ParticipationCompleted, ParticipationDate: at(2024, 11, 17), HoursWorked: 3},
		{Status: model.ParticipationCompleted, ParticipationDate: at(2024, 12, 1), HoursWorked: 1.5, PerformanceRating: intPtr(5)},
		{Status: model.ParticipationNoShow, ParticipationDate: at(2024, 12, 8)},
		{Status: model.ParticipationCompleted, ParticipationDate: at(2023, 12, 1), HoursWorked: 8},
	}

	trends := MonthlyTrends(records, 3, now, time.UTC)
	require.Len(t, trends, 3)

	assert.Equal(t, "2024-10", trends[0].Month)
	assert.Equal(t, 0, trends[0].EventCount)
	assert.Nil(t, trends[0].AverageRating)

	assert.Equal(t, "2024-11", trends[1].Month)
	assert.Equal(t, 2, trends[1].EventCount)
	assert.Equal(t, 5.0, trends[1].TotalHours)
	require.NotNil(t, trends[1].AverageRating)
	assert.Equal(t, 4.0, *trends[1].AverageRating)

	assert.Equal(t, "2024-12", trends[2].Month)
	assert.Equal(t, 1, trends[2].EventCount)
	assert.Equal(t, 1.5, trends[2].TotalHours)
}

func TestMonthlyTrends_DefaultAndMaxMonths(t *testing.T) {
	now := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	assert.Len(t, MonthlyTrends(nil, 0, now, nil), 12)
	long := MonthlyTrends(nil, 99, now, nil)
	assert.Len(t, long, 36)
	assert.Equal(t, "2024-03", long[len(long)-1].Month)
}
