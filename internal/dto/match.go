package dto

// ── 匹配模块 DTO ──

// MatchQueryRequest 匹配查询参数
type MatchQueryRequest struct {
	Limit           int  `form:"limit"            binding:"omitempty,min=1,max=100"`
	MinScore        int  `form:"min_score"        binding:"omitempty,min=0,max=100"`
	IncludeAssigned bool `form:"include_assigned"`
}

// ScoreBreakdown 各子项得分（0..100）
type ScoreBreakdown struct {
	Skills       int `json:"skills"`
	Availability int `json:"availability"`
	Location     int `json:"location"`
	Reliability  int `json:"reliability"`
}

// MatchResultResponse 单个匹配结果
// subject 为活动方向查询时的志愿者，或志愿者方向查询时的活动
type MatchResultResponse struct {
	SubjectID       string         `json:"subject_id"`
	SubjectName     string         `json:"subject_name"`
	MatchScore      int            `json:"match_score"`
	ScoreBreakdown  ScoreBreakdown `json:"score_breakdown"`
	MatchQuality    string         `json:"match_quality"`
	Recommendations []string       `json:"recommendations"`
	DistanceKm      *float64       `json:"distance_km,omitempty"`
	StartTime       *string        `json:"start_time,omitempty"`
}
