package types

// Kind 一次代理调用的失败分类
type Kind string

const (
	KindNone        Kind = "none"         // 上游2xx，解析失败也算成功，只标记fallback
	KindConfig      Kind = "config"       // 缺少密钥等配置错误
	KindRateLimited Kind = "rate_limited" // 上游429
	KindQuota       Kind = "quota"        // 上游402
	KindUpstream    Kind = "upstream"     // 其他非2xx或网络错误
	KindCanceled    Kind = "canceled"     // 客户端断开或超时
)

// IsFailure 是否计入连续失败
func (k Kind) IsFailure() bool {
	return k != KindNone && k != KindCanceled
}
