package tips

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FlexString 接受任意JSON值的文本字段：字符串原样保留，数字、布尔、对象和数组
// 以紧凑JSON写入提示词，例如 "temperature": 24、"farmSize": 2.5、"maize": {"price": 350}
type FlexString string

// UnmarshalJSON 实现json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return fmt.Errorf("invalid JSON value: %w", err)
		}
		*f = FlexString(buf.String())
	}
	return nil
}

// FarmProfile 农场信息
type FarmProfile struct {
	Location   string     `json:"location"`
	Crops      []string   `json:"crops"`
	FarmSize   FlexString `json:"farmSize"`
	Experience FlexString `json:"experience"`
}

// WeatherData 天气快照
type WeatherData struct {
	Temperature FlexString `json:"temperature"`
	Humidity    FlexString `json:"humidity"`
	Rainfall    FlexString `json:"rainfall"`
	Season      FlexString `json:"season"`
}

// MarketData 作物名到行情的映射，行情可以是文字、数字或对象
type MarketData map[string]FlexString

// TipsRequest 生成建议请求，所有字段都可以省略
type TipsRequest struct {
	FarmProfile *FarmProfile `json:"farmProfile"`
	WeatherData *WeatherData `json:"weatherData"`
	MarketData  MarketData   `json:"marketData"`
	Timeframe   string       `json:"timeframe"`
}

// 时间范围
const (
	TimeframeToday    = "today"
	TimeframeWeekly   = "weekly"
	TimeframeLearning = "learning"
)

// DefaultFarmProfile 默认农场：基加利的中等经验小农户
func DefaultFarmProfile() FarmProfile {
	return FarmProfile{
		Location:   "Kigali, Rwanda",
		Crops:      []string{"maize", "beans"},
		FarmSize:   "1-2 hectares",
		Experience: "intermediate",
	}
}

// DefaultWeatherData 默认天气
func DefaultWeatherData() WeatherData {
	return WeatherData{
		Temperature: "24",
		Humidity:    "65",
		Rainfall:    "moderate",
		Season:      "current season",
	}
}

// DefaultMarketData 默认市场行情
func DefaultMarketData() MarketData {
	return MarketData{"maize": "stable", "beans": "stable"}
}

// applyDefaults 逐字段补齐默认值
func (r *TipsRequest) applyDefaults() {
	farm := DefaultFarmProfile()
	if r.FarmProfile == nil {
		r.FarmProfile = &farm
	} else {
		if r.FarmProfile.Location == "" {
			r.FarmProfile.Location = farm.Location
		}
		if len(r.FarmProfile.Crops) == 0 {
			r.FarmProfile.Crops = farm.Crops
		}
		if r.FarmProfile.FarmSize == "" {
			r.FarmProfile.FarmSize = farm.FarmSize
		}
		if r.FarmProfile.Experience == "" {
			r.FarmProfile.Experience = farm.Experience
		}
	}

	weather := DefaultWeatherData()
	if r.WeatherData == nil {
		r.WeatherData = &weather
	} else {
		if r.WeatherData.Temperature == "" {
			r.WeatherData.Temperature = weather.Temperature
		}
		if r.WeatherData.Humidity == "" {
			r.WeatherData.Humidity = weather.Humidity
		}
		if r.WeatherData.Rainfall == "" {
			r.WeatherData.Rainfall = weather.Rainfall
		}
		if r.WeatherData.Season == "" {
			r.WeatherData.Season = weather.Season
		}
	}

	if len(r.MarketData) == 0 {
		r.MarketData = DefaultMarketData()
	}

	r.Timeframe = strings.ToLower(strings.TrimSpace(r.Timeframe))
	if r.Timeframe == "" {
		r.Timeframe = TimeframeToday
	}
}

// describe 按作物名排序输出，保证提示词稳定
func (m MarketData) describe() string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, m[name]))
	}
	return strings.Join(parts, ", ")
}
