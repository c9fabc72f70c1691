package service

import (
	"math"
	"time"

	"volunteer-hub/internal/model"
)

// ════════════════════════════════════════════════════════════
// Reliability — 由参与记录推导的信誉统计（纯函数）
// ════════════════════════════════════════════════════════════

const (
	noShowPenalty      = 10
	experienceBonus    = 5
	experiencedRecords = 5
	veteranRecords     = 10
	attendanceWeight   = 0.4
	completionWeight   = 0.6
	defaultTrendMonths = 12
	maxTrendMonths     = 36
	trendMonthLayout   = "2006-01"
)

// ReliabilityStats 信誉分及其构成
type ReliabilityStats struct {
	Score          int
	AttendanceRate float64
	CompletionRate float64
	TotalRecords   int
	Attended       int
	Completed      int
	NoShows        int
	TotalHours     float64
}

// ComputeReliability 计算信誉分：
// 0.4 × 到场率 + 0.6 × 完成率 − 10 × 缺席次数，满 5 条 +5、满 10 条再 +5，截断到 0..100。
// 无记录时得 0，TotalRecords 为 0 供调用方区分新人。
func ComputeReliability(records []model.ParticipationHistory) ReliabilityStats {
	var st ReliabilityStats
	st.TotalRecords = len(records)
	if st.TotalRecords == 0 {
		return st
	}

	for _, r := range records {
		if r.Attendance.IsAttended() {
			st.Attended++
		}
		if r.Status == model.ParticipationCompleted {
			st.Completed++
		}
		if r.Status == model.ParticipationNoShow {
			st.NoShows++
		}
		st.TotalHours += r.HoursWorked
	}

	total := float64(st.TotalRecords)
	att := float64(st.Attended) / total * 100
	comp := float64(st.Completed) / total * 100

	score := attendanceWeight*att + completionWeight*comp - float64(st.NoShows*noShowPenalty)
	if st.TotalRecords >= experiencedRecords {
		score += experienceBonus
	}
	if st.TotalRecords >= veteranRecords {
		score += experienceBonus
	}

	st.Score = clampScore(int(math.Round(score)))
	st.AttendanceRate = round2(att)
	st.CompletionRate = round2(comp)
	st.TotalHours = round2(st.TotalHours)
	return st
}

// MonthlyTrend 单月统计
type MonthlyTrend struct {
	Month         string
	EventCount    int
	TotalHours    float64
	AverageRating *float64
}

// MonthlyTrends 按 participation_date 所在自然月汇总已完成记录。
// 返回截至 now 所在月份的最近 months 个月（升序），无记录的月份计 0；
// 平均评分仅统计有评分的记录。
func MonthlyTrends(records []model.ParticipationHistory, months int, now time.Time, loc *time.Location) []MonthlyTrend {
	if months <= 0 {
		months = defaultTrendMonths
	}
	if months > maxTrendMonths {
		months = maxTrendMonths
	}
	if loc == nil {
		loc = time.UTC
	}

	type acc struct {
		count     int
		hours     float64
		ratingSum int
		rated     int
	}
	buckets := make(map[string]*acc, months)
	ordered := make([]string, 0, months)

	cur := now.In(loc)
	first := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -(months - 1), 0)
	for i := 0; i < months; i++ {
		key := first.AddDate(0, i, 0).Format(trendMonthLayout)
		buckets[key] = &acc{}
		ordered = append(ordered, key)
	}

	for _, r := range records {
		if r.Status != model.ParticipationCompleted {
			continue
		}
		b, ok := buckets[r.ParticipationDate.In(loc).Format(trendMonthLayout)]
		if !ok {
			continue
		}
		b.count++
		b.hours += r.HoursWorked
		if r.PerformanceRating != nil {
			b.ratingSum += *r.PerformanceRating
			b.rated++
		}
	}

	result := make([]MonthlyTrend, 0, months)
	for _, key := range ordered {
		b := buckets[key]
		t := MonthlyTrend{Month: key, EventCount: b.count, TotalHours: round2(b.hours)}
		if b.rated > 0 {
			avg := round2(float64(b.ratingSum) / float64(b.rated))
			t.AverageRating = &avg
		}
		result = append(result, t)
	}
	return result
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
