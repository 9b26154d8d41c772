package image

// ImageData 从data URI解析出的图片数据
type ImageData struct {
	MediaType string // 声明的MIME类型，如image/jpeg
	Format    string // 声明的格式：jpeg, png, webp, gif
	Data      string // base64编码的图片数据，不含前缀
}

// DataURI 重新拼接为data URI
func (d ImageData) DataURI() string {
	return "data:" + d.MediaType + ";base64," + d.Data
}

// ValidationResult 图片验证结果
type ValidationResult struct {
	IsValid      bool
	Format       string // 解码得到的实际格式
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}

// ImageMetrics 图片处理统计信息
type ImageMetrics struct {
	TotalProcessed    int64 `json:"total_processed"`
	Accepted          int64 `json:"accepted"`
	FailedValidations int64 `json:"failed_validations"`
	SecurityIncidents int64 `json:"security_incidents"`
}
