package utils

import (
	"regexp"
	"strings"
)

var (
	// ``` 或 ```json 包裹的代码块，取第一个
	fencedBlockPattern = regexp.MustCompile("(?s)```(?:[jJ][sS][oO][nN])?[ \\t]*\\r?\\n?(.*?)```")
	// 从第一个 { 到最后一个 } 的最宽匹配
	braceSpanPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractFencedBlock 提取第一个代码块的内容
func ExtractFencedBlock(text string) (string, bool) {
	matches := fencedBlockPattern.FindStringSubmatch(text)
	if len(matches) < 2 {
		return "", false
	}
	content := strings.TrimSpace(matches[1])
	if content == "" {
		return "", false
	}
	return content, true
}

// ExtractBraceSpan 提取从第一个 { 到最后一个 } 的片段
func ExtractBraceSpan(text string) (string, bool) {
	span := braceSpanPattern.FindString(text)
	if span == "" {
		return "", false
	}
	return span, true
}

// ExtractJSONCandidate 优先取代码块，其次取最宽的大括号片段
func ExtractJSONCandidate(text string) (string, bool) {
	if block, ok := ExtractFencedBlock(text); ok {
		return block, true
	}
	return ExtractBraceSpan(text)
}

// Truncate 按rune截断文本，用于日志
func Truncate(text string, max int) string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
