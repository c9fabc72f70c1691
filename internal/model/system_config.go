package model

// SystemConfig 系统配置表 — 对应 system_config（单行强类型）
// 覆盖 config.yaml 中的匹配权重、分档与签到窗口
type SystemConfig struct {
	Singleton           bool    `gorm:"primaryKey"                 json:"-"`
	WeightSkills        int     `gorm:"not null;default:40"        json:"weight_skills"`
	WeightAvailability  int     `gorm:"not null;default:25"        json:"weight_availability"`
	WeightLocation      int     `gorm:"not null;default:20"        json:"weight_location"`
	WeightReliability   int     `gorm:"not null;default:15"        json:"weight_reliability"`
	BandExcellent       int     `gorm:"not null;default:90"        json:"band_excellent"`
	BandGood            int     `gorm:"not null;default:70"        json:"band_good"`
	BandFair            int     `gorm:"not null;default:50"        json:"band_fair"`
	LocationRadiusKm    float64 `gorm:"not null;default:50"        json:"location_radius_km"`
	LocationFloor       int     `gorm:"not null;default:10"        json:"location_floor"`
	NewcomerReliability int     `gorm:"not null;default:50"        json:"newcomer_reliability"`
	CheckInLeadMinutes  int     `gorm:"not null;default:30"        json:"check_in_lead_minutes"`
	LateAfterMinutes    int     `gorm:"not null;default:0"         json:"late_after_minutes"`
	BaseModel
}

// TableName 指定表名
func (SystemConfig) TableName() string { return "system_config" }
