package service

import (
	"math"

	"volunteer-hub/internal/model"
)

// ════════════════════════════════════════════════════════════
// SkillScorer — 技能匹配度
// ════════════════════════════════════════════════════════════
//
// 每项要求的权重 = 要求等级 × (必需 ? 2 : 1)。
//   - 已掌握：min(志愿者等级 / 要求等级, 1) × 权重
//   - 未掌握且必需：0
//   - 未掌握且可选：0.3 × 权重
// 得分 = round(100 × Σ得分 / Σ权重)。无要求得 100；有要求但志愿者无任何技能得 0。

const optionalMissingCredit = 0.3

// ScoreSkills 计算志愿者技能对活动要求的匹配度（0..100）
func ScoreSkills(held []model.VolunteerSkill, required []model.EventRequiredSkill) int {
	if len(required) == 0 {
		return 100
	}
	if len(held) == 0 {
		return 0
	}

	levels := make(map[string]int, len(held))
	for _, h := range held {
		if lv := h.Proficiency.Level(); lv > levels[h.SkillID] {
			levels[h.SkillID] = lv
		}
	}

	var credit, total float64
	for _, req := range required {
		reqLevel := req.MinProficiency.Level()
		if reqLevel < 1 {
			reqLevel = 1
		}
		weight := float64(reqLevel)
		if req.IsRequired {
			weight *= 2
		}
		total += weight

		lv, ok := levels[req.SkillID]
		switch {
		case ok && lv > 0:
			credit += math.Min(float64(lv)/float64(reqLevel), 1) * weight
		case !req.IsRequired:
			credit += optionalMissingCredit * weight
		}
	}

	return clampScore(int(math.Round(100 * credit / total)))
}

// ValidateRequiredSkills 校验活动技能要求：熟练度合法且同一技能不重复
func ValidateRequiredSkills(required []model.EventRequiredSkill) error {
	seen := make(map[string]struct{}, len(required))
	for _, req := range required {
		if req.SkillID == "" {
			return newValidationError("required_skills", "skill_id 不能为空")
		}
		if req.MinProficiency.Level() == 0 {
			return newValidationError("required_skills", "熟练度无效: "+string(req.MinProficiency))
		}
		if _, dup := seen[req.SkillID]; dup {
			return newValidationError("required_skills", "技能重复: "+req.SkillID)
		}
		seen[req.SkillID] = struct{}{}
	}
	return nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
