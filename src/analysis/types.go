package analysis

// AnalysisRequest 作物图片分析请求
type AnalysisRequest struct {
	ImageData string `json:"imageData"` // data:image/<fmt>;base64,...
	CropType  string `json:"cropType"`
	Location  string `json:"location"`
}

const (
	defaultCropType = "unknown crop"
	defaultLocation = "Rwanda"

	// 九个必填字段加五个附加字段，输出较长
	analysisMaxTokens = 1500
)

func (r *AnalysisRequest) applyDefaults() {
	if r.CropType == "" {
		r.CropType = defaultCropType
	}
	if r.Location == "" {
		r.Location = defaultLocation
	}
}
