// Package normalize 把模型返回的自由文本转换为固定结构的结果。
// 除chat策略外都会尝试提取并解析JSON，任何失败都返回确定性的兜底结果，不会panic。
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"

	"farmassist-server-go/src/core/utils"

	"github.com/go-playground/validator/v10"
)

var (
	errNoJSON = errors.New("no JSON span found")

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Normalize 按策略归一化上游文本
func Normalize(strategy Strategy, raw string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = fallbackOutcome(strategy, raw, fmt.Sprintf("panic: %v", r))
		}
	}()

	switch strategy {
	case StrategyChat:
		return Outcome{Value: ChatReply{Response: raw}}
	case StrategyTips:
		result, err := parseTips(raw)
		if err != nil {
			return fallbackOutcome(strategy, raw, err.Error())
		}
		return Outcome{Value: result}
	default:
		result, err := parseAnalysis(raw)
		if err != nil {
			return fallbackOutcome(StrategyAnalysis, raw, err.Error())
		}
		return Outcome{Value: result}
	}
}

func parseAnalysis(raw string) (*CropAnalysis, error) {
	var result CropAnalysis
	if err := decodeAndValidate(raw, &result); err != nil {
		return nil, err
	}
	result.Fallback = false
	result.RawResponse = ""
	return &result, nil
}

func parseTips(raw string) (*TipsResult, error) {
	var result TipsResult
	if err := decodeAndValidate(raw, &result); err != nil {
		return nil, err
	}
	result.Fallback = false
	result.RawResponse = ""
	return &result, nil
}

// decodeAndValidate 提取JSON片段、严格解析并做结构校验
func decodeAndValidate(raw string, target interface{}) error {
	span, ok := utils.ExtractJSONCandidate(raw)
	if !ok {
		return errNoJSON
	}
	if err := json.Unmarshal([]byte(span), target); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("schema mismatch: %w", err)
	}
	return nil
}

func fallbackOutcome(strategy Strategy, raw string, reason string) Outcome {
	switch strategy {
	case StrategyChat:
		return Outcome{Value: ChatReply{Response: raw}, Fallback: true, Reason: reason}
	case StrategyTips:
		result := FallbackTips()
		result.RawResponse = raw
		return Outcome{Value: result, Fallback: true, Reason: reason}
	default:
		result := FallbackAnalysis()
		result.RawResponse = raw
		return Outcome{Value: result, Fallback: true, Reason: reason}
	}
}
