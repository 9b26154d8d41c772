package normalize

// Strategy 归一化策略
type Strategy string

const (
	StrategyAnalysis Strategy = "analysis"
	StrategyTips     Strategy = "tips"
	StrategyChat     Strategy = "chat"
)

// CropAnalysis 作物图片分析结果，前九个字段为必填字段
type CropAnalysis struct {
	Health           *float64 `json:"health" validate:"required,min=0,max=100"`
	Disease          string   `json:"disease" validate:"required"`
	Symptoms         []string `json:"symptoms" validate:"required"`
	Causes           []string `json:"causes" validate:"required"`
	Severity         string   `json:"severity" validate:"required"`
	Confidence       *float64 `json:"confidence" validate:"required,min=0,max=100"`
	ImmediateActions []string `json:"immediateActions" validate:"required"`
	Treatments       []string `json:"treatments" validate:"required"`
	Prevention       []string `json:"prevention" validate:"required"`

	YieldImpact    string   `json:"yieldImpact"`
	GrowthStage    string   `json:"growthStage"`
	RiskLevel      string   `json:"riskLevel"`
	LocalSolutions []string `json:"localSolutions"`
	MarketAdvice   string   `json:"marketAdvice"`

	// 解析失败时附带原始文本，仅供排查
	Fallback    bool   `json:"fallback,omitempty"`
	RawResponse string `json:"rawResponse,omitempty"`
}

// Tip 单条种植建议；category/priority保持开放字符串
type Tip struct {
	Title           string   `json:"title" validate:"required"`
	Description     string   `json:"description" validate:"required"`
	Category        string   `json:"category"`
	Priority        string   `json:"priority"`
	TimeRelevant    string   `json:"timeRelevant"`
	BasedOn         []string `json:"basedOn"`
	LocalResources  []string `json:"localResources"`
	ExpectedBenefit string   `json:"expectedBenefit"`
}

// TipsResult 建议列表
type TipsResult struct {
	Tips []Tip `json:"tips" validate:"required,min=1,dive"`

	Fallback    bool   `json:"fallback,omitempty"`
	RawResponse string `json:"rawResponse,omitempty"`
}

// ChatReply 对话回复，内容原样透传
type ChatReply struct {
	Response string `json:"response"`
}

// Outcome 归一化结果，Value永不为nil
type Outcome struct {
	Value    interface{}
	Fallback bool
	Reason   string
}
