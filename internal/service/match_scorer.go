package service

import (
	"math"
	"strconv"
	"strings"
	"time"

	"volunteer-hub/config"
	"volunteer-hub/internal/model"
)

// ════════════════════════════════════════════════════════════
// MatchScorer — 志愿者与活动的综合匹配分（纯函数）
// ════════════════════════════════════════════════════════════

// 匹配质量
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityFair      = "fair"
	QualityPoor      = "poor"
)

const (
	strongFactor  = 80
	weakFactor    = 40
	earthRadiusKm = 6371.0
	minutesPerDay = 24 * 60
)

// ScoreBreakdown 各子项得分（0..100）
type ScoreBreakdown struct {
	Skills       int
	Availability int
	Location     int
	Reliability  int
}

// MatchScore 单个（志愿者, 活动）的打分结果
type MatchScore struct {
	Total           int
	Breakdown       ScoreBreakdown
	Quality         string
	Recommendations []string
	DistanceKm      *float64
}

// ScoreMatch 计算综合匹配分
func ScoreMatch(v *model.Volunteer, e *model.Event, s Settings) MatchScore {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}

	b := ScoreBreakdown{
		Skills:       ScoreSkills(v.Skills, e.RequiredSkills),
		Availability: AvailabilityScore(v.Availabilities, e.StartTime, e.EndTime, loc),
		Reliability:  ReliabilitySubScore(v, s.NewcomerReliability),
	}
	var dist *float64
	b.Location, dist = LocationScore(v, e, s.LocationRadiusKm, s.LocationFloor)

	total := WeightedTotal(b, s.Weights)
	return MatchScore{
		Total:           total,
		Breakdown:       b,
		Quality:         QualityFor(total, s.Bands),
		Recommendations: Recommendations(b, e.Urgency),
		DistanceKm:      dist,
	}
}

// WeightedTotal round(Σ 权重 × 子项 / 100)，结果截断到 0..100
func WeightedTotal(b ScoreBreakdown, w config.MatchWeights) int {
	sum := float64(w.Skills*b.Skills +
		w.Availability*b.Availability +
		w.Location*b.Location +
		w.Reliability*b.Reliability)
	return clampScore(int(math.Round(sum / 100)))
}

// QualityFor 按分档下限映射匹配质量
func QualityFor(total int, bands config.QualityBands) string {
	switch {
	case total >= bands.Excellent:
		return QualityExcellent
	case total >= bands.Good:
		return QualityGood
	case total >= bands.Fair:
		return QualityFair
	default:
		return QualityPoor
	}
}

// ── 可用时间 ──

// AvailabilityScore 存在与活动时段重叠的可用时间段得 100，否则 0。
// 每周重复的时间段按活动开始日的星期匹配，单日时间段按日期匹配；
// 跨天活动只考虑开始当天，结束时间视为 24:00。
func AvailabilityScore(slots []model.VolunteerAvailability, start, end time.Time, loc *time.Location) int {
	ls := start.In(loc)
	le := end.In(loc)

	evStart := ls.Hour()*60 + ls.Minute()
	evEnd := minutesPerDay
	if sameDate(ls, le) {
		evEnd = le.Hour()*60 + le.Minute()
	}
	weekday := isoWeekday(ls.Weekday())

	for _, slot := range slots {
		switch {
		case slot.DayOfWeek != nil:
			if *slot.DayOfWeek != weekday {
				continue
			}
		case slot.SpecificDate != nil:
			d := *slot.SpecificDate
			if d.Year() != ls.Year() || d.Month() != ls.Month() || d.Day() != ls.Day() {
				continue
			}
		default:
			continue
		}

		from, err1 := parseClock(slot.StartTime)
		to, err2 := parseClock(slot.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if from < evEnd && evStart < to {
			return 100
		}
	}
	return 0
}

// parseClock 解析 HH:MM 为当日分钟数，允许 24:00
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, strconv.ErrSyntax
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, err
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, strconv.ErrRange
	}
	return h*60 + m, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// isoWeekday time.Weekday (0=Sunday) 转 ISO 8601 (1=Monday … 7=Sunday)
func isoWeekday(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// ── 距离 ──

// LocationScore 半径内按余弦曲线从 100 平滑衰减到 floor，半径外或缺少坐标为 floor
func LocationScore(v *model.Volunteer, e *model.Event, radiusKm float64, floor int) (int, *float64) {
	if !v.HasLocation() || !e.HasLocation() {
		return floor, nil
	}
	d := HaversineKm(*v.Latitude, *v.Longitude, *e.Latitude, *e.Longitude)
	d = math.Round(d*100) / 100
	if radiusKm <= 0 || d >= radiusKm {
		return floor, &d
	}
	score := float64(floor) + float64(100-floor)*(1+math.Cos(math.Pi*d/radiusKm))/2
	return clampScore(int(math.Round(score))), &d
}

// HaversineKm 两点球面距离（公里）
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// ── 信誉 ──

// ReliabilitySubScore 暂无参与记录的志愿者使用新人默认分
func ReliabilitySubScore(v *model.Volunteer, newcomer int) int {
	if v.ReliabilityScore == nil {
		return clampScore(newcomer)
	}
	return clampScore(*v.ReliabilityScore)
}

// ── 推荐语 ──

// Recommendations 列出强项（≥80）与短板（<40），紧急活动附加提示
func Recommendations(b ScoreBreakdown, urgency model.Urgency) []string {
	factors := []struct {
		score        int
		strong, weak string
	}{
		{b.Skills, "技能高度匹配", "技能差距较大，建议先安排培训"},
		{b.Availability, "可用时间与活动吻合", "可用时间与活动不重合，需确认档期"},
		{b.Location, "距离活动地点较近", "距离活动地点较远"},
		{b.Reliability, "历史出勤可靠", "历史出勤记录欠佳"},
	}

	recs := make([]string, 0, 3)
	for _, f := range factors {
		switch {
		case f.score >= strongFactor:
			recs = append(recs, f.strong)
		case f.score < weakFactor:
			recs = append(recs, f.weak)
		}
	}
	if urgency == model.UrgencyHigh || urgency == model.UrgencyUrgent {
		recs = append(recs, "活动紧急，建议优先联系")
	}
	return recs
}
