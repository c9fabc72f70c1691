package model

import (
	"fmt"
	"strings"
)

// normalizeEnum 统一大小写与分隔符：NO_SHOW / no-show / "No Show" → no_show
func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// ════════════════════════════════════════════════════════════
// Proficiency — 技能熟练度
// ════════════════════════════════════════════════════════════

type Proficiency string

const (
	ProficiencyBeginner     Proficiency = "beginner"
	ProficiencyIntermediate Proficiency = "intermediate"
	ProficiencyAdvanced     Proficiency = "advanced"
	ProficiencyExpert       Proficiency = "expert"
)

// Level 数值等级 1..4，未知值为 0
func (p Proficiency) Level() int {
	switch p {
	case ProficiencyBeginner:
		return 1
	case ProficiencyIntermediate:
		return 2
	case ProficiencyAdvanced:
		return 3
	case ProficiencyExpert:
		return 4
	}
	return 0
}

// ParseProficiency 解析熟练度，同时接受 "1".."4"
func ParseProficiency(s string) (Proficiency, error) {
	switch normalizeEnum(s) {
	case "beginner", "1":
		return ProficiencyBeginner, nil
	case "intermediate", "2":
		return ProficiencyIntermediate, nil
	case "advanced", "3":
		return ProficiencyAdvanced, nil
	case "expert", "4":
		return ProficiencyExpert, nil
	}
	return "", fmt.Errorf("未知的熟练度: %q", s)
}

// ════════════════════════════════════════════════════════════
// Urgency — 活动紧急程度
// ════════════════════════════════════════════════════════════

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// Level 数值等级 1..4
func (u Urgency) Level() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyNormal:
		return 2
	case UrgencyHigh:
		return 3
	case UrgencyUrgent:
		return 4
	}
	return 0
}

// ParseUrgency 解析紧急程度，medium 视为 normal，critical 视为 urgent
func ParseUrgency(s string) (Urgency, error) {
	switch normalizeEnum(s) {
	case "low":
		return UrgencyLow, nil
	case "normal", "medium":
		return UrgencyNormal, nil
	case "high":
		return UrgencyHigh, nil
	case "urgent", "critical":
		return UrgencyUrgent, nil
	}
	return "", fmt.Errorf("未知的紧急程度: %q", s)
}

// ════════════════════════════════════════════════════════════
// EventStatus — 活动状态
// ════════════════════════════════════════════════════════════

type EventStatus string

const (
	EventStatusDraft      EventStatus = "draft"
	EventStatusPublished  EventStatus = "published"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusCancelled  EventStatus = "cancelled"
)

var eventTransitions = map[EventStatus][]EventStatus{
	EventStatusDraft:      {EventStatusPublished, EventStatusCancelled},
	EventStatusPublished:  {EventStatusInProgress, EventStatusCompleted, EventStatusCancelled},
	EventStatusInProgress: {EventStatusCompleted, EventStatusCancelled},
}

// CanTransitionTo 判断状态迁移是否合法
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	for _, allowed := range eventTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsFinal completed 与 cancelled 为终态
func (s EventStatus) IsFinal() bool {
	return s == EventStatusCompleted || s == EventStatusCancelled
}

func ParseEventStatus(s string) (EventStatus, error) {
	switch v := EventStatus(normalizeEnum(s)); v {
	case EventStatusDraft, EventStatusPublished, EventStatusInProgress, EventStatusCompleted, EventStatusCancelled:
		return v, nil
	}
	return "", fmt.Errorf("未知的活动状态: %q", s)
}

// ════════════════════════════════════════════════════════════
// AssignmentStatus — 派遣状态
// ════════════════════════════════════════════════════════════

type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusConfirmed AssignmentStatus = "confirmed"
	AssignmentStatusDeclined  AssignmentStatus = "declined"
	AssignmentStatusCancelled AssignmentStatus = "cancelled"
	AssignmentStatusCompleted AssignmentStatus = "completed"
)

// IsActive cancelled / declined 以外均视为有效派遣
func (s AssignmentStatus) IsActive() bool {
	return s != AssignmentStatusCancelled && s != AssignmentStatusDeclined
}

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusPending:   {AssignmentStatusConfirmed, AssignmentStatusDeclined, AssignmentStatusCancelled},
	AssignmentStatusConfirmed: {AssignmentStatusCancelled, AssignmentStatusCompleted},
}

// CanTransitionTo 判断派遣状态迁移是否合法（重新激活走创建流程）
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParseAssignmentStatus(s string) (AssignmentStatus, error) {
	switch v := AssignmentStatus(normalizeEnum(s)); v {
	case AssignmentStatusPending, AssignmentStatusConfirmed, AssignmentStatusDeclined,
		AssignmentStatusCancelled, AssignmentStatusCompleted:
		return v, nil
	}
	return "", fmt.Errorf("未知的派遣状态: %q", s)
}

// ════════════════════════════════════════════════════════════
// ParticipationStatus — 参与状态
// ════════════════════════════════════════════════════════════

type ParticipationStatus string

const (
	ParticipationRegistered ParticipationStatus = "registered"
	ParticipationConfirmed  ParticipationStatus = "confirmed"
	ParticipationInProgress ParticipationStatus = "in_progress"
	ParticipationCompleted  ParticipationStatus = "completed"
	ParticipationNoShow     ParticipationStatus = "no_show"
	ParticipationCancelled  ParticipationStatus = "cancelled"
	ParticipationLeftEarly  ParticipationStatus = "left_early"
)

// IsFinal 已结束的参与记录，结算时保持不动
func (s ParticipationStatus) IsFinal() bool {
	switch s {
	case ParticipationCompleted, ParticipationNoShow, ParticipationCancelled, ParticipationLeftEarly:
		return true
	}
	return false
}

func ParseParticipationStatus(s string) (ParticipationStatus, error) {
	switch v := ParticipationStatus(normalizeEnum(s)); v {
	case ParticipationRegistered, ParticipationConfirmed, ParticipationInProgress, ParticipationCompleted,
		ParticipationNoShow, ParticipationCancelled, ParticipationLeftEarly:
		return v, nil
	}
	return "", fmt.Errorf("未知的参与状态: %q", s)
}

// ════════════════════════════════════════════════════════════
// AttendanceStatus — 出勤状态
// ════════════════════════════════════════════════════════════

type AttendanceStatus string

const (
	AttendancePending AttendanceStatus = "pending"
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
)

// IsAttended present 与 late 计为到场
func (s AttendanceStatus) IsAttended() bool {
	return s == AttendancePresent || s == AttendanceLate
}

func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	switch v := AttendanceStatus(normalizeEnum(s)); v {
	case AttendancePending, AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused:
		return v, nil
	}
	return "", fmt.Errorf("未知的出勤状态: %q", s)
}

// ════════════════════════════════════════════════════════════
// Notification — 通知优先级与类型
// ════════════════════════════════════════════════════════════

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

type NotificationType string

const (
	NotifyAssignmentCreated   NotificationType = "assignment_created"
	NotifyAssignmentConfirmed NotificationType = "assignment_confirmed"
	NotifyCheckIn             NotificationType = "check_in"
	NotifyCheckOut            NotificationType = "check_out"
	NotifyNoShow              NotificationType = "no_show"
	NotifyEventFinalized      NotificationType = "event_finalized"
)
