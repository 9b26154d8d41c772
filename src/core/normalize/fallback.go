package normalize

import "encoding/json"

func float64Ptr(v float64) *float64 {
	return &v
}

// FallbackAnalysis 通用兜底分析结果（解析失败或上游失败）
func FallbackAnalysis() *CropAnalysis {
	return &CropAnalysis{
		Health:           float64Ptr(50),
		Disease:          "Analysis unavailable",
		Symptoms:         []string{},
		Causes:           []string{},
		Severity:         "unknown",
		Confidence:       float64Ptr(0),
		ImmediateActions: []string{},
		Treatments:       []string{},
		Prevention:       []string{},
		YieldImpact:      "Unknown",
		GrowthStage:      "Unknown",
		RiskLevel:        "medium",
		LocalSolutions:   []string{},
		MarketAdvice:     "Consult your local agricultural extension officer before selling.",
		Fallback:         true,
	}
}

// RateLimitedAnalysis 上游限流时返回的分析结果，每个字段都有可展示的占位内容
func RateLimitedAnalysis() *CropAnalysis {
	return &CropAnalysis{
		Health:           float64Ptr(70),
		Disease:          "Analysis temporarily unavailable",
		Symptoms:         []string{"AI analysis is busy right now, please try again in a few minutes"},
		Causes:           []string{"High demand on the analysis service"},
		Severity:         "unknown",
		Confidence:       float64Ptr(0),
		ImmediateActions: []string{"Inspect leaves, stems and roots for spots, wilting or pests", "Retake the photo in good daylight and try again shortly"},
		Treatments:       []string{"Wait for the full analysis before applying any treatment"},
		Prevention:       []string{"Keep the field weeded and monitor plants daily"},
		YieldImpact:      "Not yet assessed",
		GrowthStage:      "Not yet assessed",
		RiskLevel:        "medium",
		LocalSolutions:   []string{"Contact your local agronomist or cooperative for advice"},
		MarketAdvice:     "Hold selling decisions until the analysis is complete.",
		Fallback:         true,
	}
}

// DailyMonitoringTip 通用的每日巡田建议
func DailyMonitoringTip() Tip {
	return Tip{
		Title:           "Daily crop monitoring",
		Description:     "Walk through your field every morning and check leaves, stems and soil moisture for early signs of pests, disease or water stress.",
		Category:        "general",
		Priority:        "medium",
		TimeRelevant:    "today",
		BasedOn:         []string{"general best practice"},
		LocalResources:  []string{"Local agricultural extension officer"},
		ExpectedBenefit: "Early detection of problems before they spread",
	}
}

// FallbackTips 解析失败时的建议列表（单条通用建议）
func FallbackTips() *TipsResult {
	return &TipsResult{Tips: []Tip{DailyMonitoringTip()}, Fallback: true}
}

// RateLimitedTips 上游限流时的建议列表
func RateLimitedTips() *TipsResult {
	return FallbackTips()
}

// EmptyTips 上游失败时的空建议列表
func EmptyTips() *TipsResult {
	return &TipsResult{Tips: []Tip{}, Fallback: true}
}

// WithError 把兜底结果展开为map并附加通用错误说明，用于非200响应
func WithError(value interface{}, reason string) map[string]interface{} {
	body := map[string]interface{}{}
	if data, err := json.Marshal(value); err == nil {
		_ = json.Unmarshal(data, &body)
	}
	body["error"] = reason
	return body
}
