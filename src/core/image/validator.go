package image

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"farmassist-server-go/src/configs"
	"farmassist-server-go/src/core/utils"

	_ "image/gif"  // 注册GIF解码器
	_ "image/jpeg" // 注册JPEG解码器
	_ "image/png"  // 注册PNG解码器

	_ "golang.org/x/image/webp" // 注册WEBP解码器
)

var (
	ErrMissingImage   = errors.New("missing image data")
	ErrInvalidDataURI = errors.New("image must be a base64 data URI")
)

// 图片格式魔数签名
var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46}, // RIFF，后面还要检查WEBP标识
}

// 文件开头出现即拒绝的签名
var rejectedSignatures = []struct {
	name string
	sig  []byte
}{
	{"PE", []byte{0x4D, 0x5A}},
	{"ELF", []byte{0x7F, 0x45, 0x4C, 0x46}},
	{"Mach-O", []byte{0xCA, 0xFE, 0xBA, 0xBE}},
	{"ZIP", []byte{0x50, 0x4B, 0x03, 0x04}},
	{"GZIP", []byte{0x1F, 0x8B, 0x08}},
}

// ParseDataURI 解析 data:image/<fmt>;base64,<payload>
func ParseDataURI(uri string) (ImageData, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return ImageData{}, ErrMissingImage
	}
	if !strings.HasPrefix(uri, "data:") {
		return ImageData{}, ErrInvalidDataURI
	}

	header, payload, found := strings.Cut(uri[len("data:"):], ",")
	if !found || payload == "" {
		return ImageData{}, ErrInvalidDataURI
	}
	mediaType, encoding, _ := strings.Cut(header, ";")
	if !strings.EqualFold(encoding, "base64") {
		return ImageData{}, ErrInvalidDataURI
	}
	mediaType = strings.ToLower(mediaType)
	if !strings.HasPrefix(mediaType, "image/") {
		return ImageData{}, fmt.Errorf("%w: media type %q", ErrInvalidDataURI, mediaType)
	}

	return ImageData{
		MediaType: mediaType,
		Format:    normalizeFormat(strings.TrimPrefix(mediaType, "image/")),
		Data:      payload,
	}, nil
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "jpg" || format == "pjpeg" {
		return "jpeg"
	}
	return format
}

// SecurityValidator 图片安全验证器
type SecurityValidator struct {
	config *configs.SecurityConfig
	logger *utils.Logger
}

// NewSecurityValidator 创建图片安全验证器
func NewSecurityValidator(config *configs.SecurityConfig, logger *utils.Logger) *SecurityValidator {
	return &SecurityValidator{config: config, logger: logger}
}

// Validate 解码base64并做大小、格式、签名、尺寸检查
func (v *SecurityValidator) Validate(data ImageData) ValidationResult {
	if data.Data == "" {
		return ValidationResult{Error: ErrMissingImage}
	}

	// base64解码后的大小约为编码长度的3/4，先粗略拦截超大输入
	if int64(base64.StdEncoding.DecodedLen(len(data.Data))) > v.config.MaxFileSize+3 {
		return v.oversize(int64(base64.StdEncoding.DecodedLen(len(data.Data))), data.Format)
	}

	raw, err := base64.StdEncoding.DecodeString(data.Data)
	if err != nil {
		return ValidationResult{
			Error:        fmt.Errorf("base64解码失败: %v", err),
			SecurityRisk: "无效的base64数据",
		}
	}
	if int64(len(raw)) > v.config.MaxFileSize {
		return v.oversize(int64(len(raw)), data.Format)
	}

	if !v.isFormatAllowed(data.Format) {
		return ValidationResult{
			Error:        fmt.Errorf("不支持的格式: %s", data.Format),
			SecurityRisk: "使用了不被允许的格式",
		}
	}

	if v.config.EnableDeepScan {
		if name, bad := matchRejectedSignature(raw); bad {
			v.logger.Warn("文件开头检测到非图片签名", map[string]interface{}{
				"signature_type": name,
				"format":         data.Format,
			})
			return ValidationResult{
				Error:        fmt.Errorf("检测到潜在恶意内容"),
				SecurityRisk: "文件签名为" + name,
			}
		}
	}

	result := v.decodeConfig(raw, data.Format)
	if !result.IsValid && !matchSignature(raw, data.Format) {
		v.logger.Warn("文件头与声明格式不符", map[string]interface{}{
			"declared_format": data.Format,
			"actual_header":   fmt.Sprintf("%x", raw[:min(len(raw), 16)]),
		})
	}
	return result
}

func (v *SecurityValidator) oversize(size int64, format string) ValidationResult {
	v.logger.Warn("检测到超大图片", map[string]interface{}{
		"size":     size,
		"max_size": v.config.MaxFileSize,
		"format":   format,
	})
	return ValidationResult{
		Error:        fmt.Errorf("文件大小超限: %d bytes，最大允许: %d bytes", size, v.config.MaxFileSize),
		SecurityRisk: "文件过大",
	}
}

// decodeConfig 只解码头部信息获取格式和尺寸
func (v *SecurityValidator) decodeConfig(raw []byte, declared string) ValidationResult {
	result := ValidationResult{Format: declared}

	cfg, actual, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		result.Error = fmt.Errorf("图片解码失败: %v", err)
		result.SecurityRisk = "损坏或伪造的图片数据"
		return result
	}
	result.Format = actual
	if !v.isFormatAllowed(actual) {
		result.Error = fmt.Errorf("不支持的实际格式: %s", actual)
		result.SecurityRisk = "声明格式与实际内容不符"
		return result
	}

	if cfg.Width > v.config.MaxWidth || cfg.Height > v.config.MaxHeight {
		result.Error = fmt.Errorf("图片尺寸超限: %dx%d，最大允许: %dx%d",
			cfg.Width, cfg.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "图片过大"
		return result
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("像素总数超限: %d，最大允许: %d", pixels, v.config.MaxPixels)
		result.SecurityRisk = "像素过多"
		return result
	}

	result.IsValid = true
	result.Width = cfg.Width
	result.Height = cfg.Height
	result.FileSize = int64(len(raw))
	return result
}

func (v *SecurityValidator) isFormatAllowed(format string) bool {
	format = normalizeFormat(format)
	for _, allowed := range v.config.AllowedFormats {
		if normalizeFormat(allowed) == format {
			return true
		}
	}
	return false
}

func matchSignature(raw []byte, format string) bool {
	sig, ok := imageSignatures[normalizeFormat(format)]
	if !ok || !bytes.HasPrefix(raw, sig) {
		return false
	}
	if normalizeFormat(format) == "webp" {
		return len(raw) >= 12 && bytes.Equal(raw[8:12], []byte("WEBP"))
	}
	return true
}

func matchRejectedSignature(raw []byte) (string, bool) {
	for _, r := range rejectedSignatures {
		if bytes.HasPrefix(raw, r.sig) {
			return r.name, true
		}
	}
	return "", false
}
