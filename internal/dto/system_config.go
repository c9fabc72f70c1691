package dto

// ── 系统配置模块 DTO ──

// UpdateSystemConfigRequest 更新系统配置请求，未提供的字段保持不变
// 权重合计与分档顺序在业务层按合并后的完整配置校验
type UpdateSystemConfigRequest struct {
	WeightSkills        *int     `json:"weight_skills"         binding:"omitempty,min=0,max=100"`
	WeightAvailability  *int     `json:"weight_availability"   binding:"omitempty,min=0,max=100"`
	WeightLocation      *int     `json:"weight_location"       binding:"omitempty,min=0,max=100"`
	WeightReliability   *int     `json:"weight_reliability"    binding:"omitempty,min=0,max=100"`
	BandExcellent       *int     `json:"band_excellent"        binding:"omitempty,min=1,max=100"`
	BandGood            *int     `json:"band_good"             binding:"omitempty,min=1,max=100"`
	BandFair            *int     `json:"band_fair"             binding:"omitempty,min=1,max=100"`
	LocationRadiusKm    *float64 `json:"location_radius_km"    binding:"omitempty,gt=0,max=20000"`
	LocationFloor       *int     `json:"location_floor"        binding:"omitempty,min=1,max=99"`
	NewcomerReliability *int     `json:"newcomer_reliability"  binding:"omitempty,min=0,max=100"`
	CheckInLeadMinutes  *int     `json:"check_in_lead_minutes" binding:"omitempty,min=0,max=240"`
	LateAfterMinutes    *int     `json:"late_after_minutes"    binding:"omitempty,min=0,max=240"`
}

// MatchWeightsResponse 匹配权重
type MatchWeightsResponse struct {
	Skills       int `json:"skills"`
	Availability int `json:"availability"`
	Location     int `json:"location"`
	Reliability  int `json:"reliability"`
}

// QualityBandsResponse 匹配质量分档
type QualityBandsResponse struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Fair      int `json:"fair"`
}

// SystemConfigResponse 系统配置响应
type SystemConfigResponse struct {
	Weights             MatchWeightsResponse `json:"weights"`
	Bands               QualityBandsResponse `json:"bands"`
	LocationRadiusKm    float64              `json:"location_radius_km"`
	LocationFloor       int                  `json:"location_floor"`
	NewcomerReliability int                  `json:"newcomer_reliability"`
	CheckInLeadMinutes  int                  `json:"check_in_lead_minutes"`
	LateAfterMinutes    int                  `json:"late_after_minutes"`
	UpdatedAt           string               `json:"updated_at,omitempty"`
}
