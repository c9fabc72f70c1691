package service

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"volunteer-hub/internal/model"
)

// ── ICS 可用时间解析 ────────────────────────────────────────
//
// 将 iCalendar (RFC 5545) 中的 VEVENT 转为志愿者可用时间段：
//   - 无 COUNT/UNTIL 的每周 RRULE → 每周重复时间段（BYDAY 或 DTSTART 的星期）
//   - 其他 RRULE 在 [now, now+90d] 内展开为单日时间段，EXDATE 排除
//   - 无 RRULE 的未来事件 → 单日时间段
//   - 全天事件为 00:00–24:00，跨天事件截至当日 24:00
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize    = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout   = 30 * time.Second
	icsExpandHorizon  = 90 * 24 * time.Hour
	icsClockLayout    = "15:04"
	icsEndOfDayClock  = "24:00"
	icsMaxOccurrences = 500
)

// ICSImport 解析结果
type ICSImport struct {
	Slots   []model.VolunteerAvailability
	Skipped int // 无法解析或已过期的 VEVENT 数
}

// FetchICSContent 从 URL 获取 ICS 内容
func FetchICSContent(rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}
	if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
		return nil, fmt.Errorf("不支持的 ICS 地址: %s", rawURL)
	}

	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小，防止超大内容导致 OOM
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// ParseAvailabilityICS 解析 ICS 为可用时间段，时间按 loc 解释
func ParseAvailabilityICS(reader io.Reader, volunteerID string, now time.Time, loc *time.Location) (*ICSImport, error) {
	if loc == nil {
		loc = time.UTC
	}
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	result := &ICSImport{}
	seen := make(map[string]bool)
	add := func(slot model.VolunteerAvailability) {
		k := slotKey(slot)
		if seen[k] {
			return
		}
		seen[k] = true
		slot.VolunteerID = volunteerID
		slot.Source = model.AvailabilitySourceICS
		result.Slots = append(result.Slots, slot)
	}

	for _, evt := range cal.Events() {
		slots, ok := slotsFromVEvent(evt, now.In(loc), loc)
		if !ok || len(slots) == 0 {
			result.Skipped++
			continue
		}
		for _, s := range slots {
			add(s)
		}
	}
	return result, nil
}

// slotsFromVEvent 解析单个 VEVENT
func slotsFromVEvent(evt *ics.VEvent, now time.Time, loc *time.Location) ([]model.VolunteerAvailability, bool) {
	dtStart, allDay, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return nil, false
	}
	dtEnd, _, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		dur, ok := parseICSDuration(evt)
		switch {
		case ok:
			dtEnd = dtStart.Add(dur)
		case allDay:
			dtEnd = dtStart.AddDate(0, 0, 1)
		default:
			return nil, false
		}
	}

	from, to := dtStart.Format(icsClockLayout), icsEndOfDayClock
	if allDay {
		from = "00:00"
	} else if sameDate(dtStart, dtEnd) {
		to = dtEnd.Format(icsClockLayout)
	}
	if to != icsEndOfDayClock && to <= from {
		return nil, false
	}

	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		// 单次事件：只保留尚未结束的
		if dtEnd.Before(now) {
			return nil, false
		}
		return []model.VolunteerAvailability{dateSlot(dtStart, from, to)}, true
	}

	rule, err := rrule.StrToRRule(rruleProp.Value)
	if err != nil {
		return nil, false
	}
	rule.DTStart(dtStart)
	opts := rule.OrigOptions

	// 无截止的每周重复 → 每周时间段
	if opts.Freq == rrule.WEEKLY && opts.Count == 0 && opts.Until.IsZero() && opts.Interval <= 1 {
		days := make([]int, 0, len(opts.Byweekday))
		for i := range opts.Byweekday {
			days = append(days, opts.Byweekday[i].Day()+1) // rrule: 0=MO
		}
		if len(days) == 0 {
			days = append(days, isoWeekday(dtStart.Weekday()))
		}
		slots := make([]model.VolunteerAvailability, 0, len(days))
		for _, d := range days {
			day := d
			slots = append(slots, model.VolunteerAvailability{DayOfWeek: &day, StartTime: from, EndTime: to})
		}
		return slots, true
	}

	exDates := parseExDates(evt, loc)
	var slots []model.VolunteerAvailability
	for _, occ := range rule.Between(now.Add(-dtEnd.Sub(dtStart)), now.Add(icsExpandHorizon), true) {
		occ = occ.In(loc)
		if exDates[occ.Format("20060102")] {
			continue
		}
		slots = append(slots, dateSlot(occ, from, to))
		if len(slots) >= icsMaxOccurrences {
			break
		}
	}
	return slots, true
}

func dateSlot(day time.Time, from, to string) model.VolunteerAvailability {
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return model.VolunteerAvailability{SpecificDate: &date, StartTime: from, EndTime: to}
}

func slotKey(s model.VolunteerAvailability) string {
	switch {
	case s.DayOfWeek != nil:
		return fmt.Sprintf("w%d|%s|%s", *s.DayOfWeek, s.StartTime, s.EndTime)
	case s.SpecificDate != nil:
		return fmt.Sprintf("d%s|%s|%s", s.SpecificDate.Format("2006-01-02"), s.StartTime, s.EndTime)
	}
	return ""
}

// parseExDates 解析事件中所有 EXDATE
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, val := range strings.Split(prop.Value, ",") {
			t, _, err := parseICSValue(strings.TrimSpace(val), tzidOf(prop.ICalParameters), loc)
			if err == nil {
				exDates[t.Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseICSDuration 解析 DURATION（如 PT1H30M、P1D、P1W）
func parseICSDuration(evt *ics.VEvent) (time.Duration, bool) {
	prop := evt.GetProperty(ics.ComponentPropertyDuration)
	if prop == nil {
		return 0, false
	}
	v := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(prop.Value)), "+")
	if !strings.HasPrefix(v, "P") {
		return 0, false
	}
	v = v[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
			continue
		case r == 'T':
			inTime = true
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, false
		}
		num = ""
		switch {
		case r == 'W' && !inTime:
			total += time.Duration(n) * 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			total += time.Duration(n) * 24 * time.Hour
		case r == 'H' && inTime:
			total += time.Duration(n) * time.Hour
		case r == 'M' && inTime:
			total += time.Duration(n) * time.Minute
		case r == 'S' && inTime:
			total += time.Duration(n) * time.Second
		default:
			return 0, false
		}
	}
	return total, num == "" && total > 0
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性，第二个返回值表示全天（DATE 类型）
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", propName)
	}
	return parseICSValue(prop.Value, tzidOf(prop.ICalParameters), loc)
}

func tzidOf(params map[string][]string) string {
	for k, v := range params {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func parseICSValue(val, tzid string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.Parse("20060102T150405", val); err == nil {
		zone := loc
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				zone = tzLoc
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, zone).In(loc), false, nil
	}
	if t, err := time.Parse("20060102", val); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true, nil
	}
	return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
}
