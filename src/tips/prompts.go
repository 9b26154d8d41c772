package tips

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an experienced agricultural extension officer working with smallholder farmers in Rwanda ` +
	`and East Africa. You give short, practical, prioritized advice that farmers can act on with locally ` +
	`available resources. Always answer with valid JSON only.`

var timeframeFocus = map[string]string{
	TimeframeToday:    "Focus on actions the farmer should take today.",
	TimeframeWeekly:   "Focus on planning the farm activities for the coming week.",
	TimeframeLearning: "Focus on educational tips that build the farmer's long-term skills and knowledge.",
}

const userPromptTemplate = `Generate 3 to 5 personalized farming tips.

Farm profile:
- Location: %s
- Crops: %s
- Farm size: %s
- Experience level: %s

Current weather:
- Temperature (°C): %s
- Humidity (%%): %s
- Rainfall: %s
- Season: %s

Market trends: %s

%s

Return ONLY a JSON object in exactly this shape:
{
  "tips": [
    {
      "title": "short title",
      "description": "clear, actionable description",
      "category": "planting | irrigation | pest_control | fertilization | harvesting | market | weather | general",
      "priority": "high | medium | low",
      "timeRelevant": "when this applies, e.g. today, this week",
      "basedOn": ["weather", "market", "crop stage"],
      "localResources": ["locally available resource"],
      "expectedBenefit": "what the farmer gains"
    }
  ]
}`

// focusFor 返回时间范围对应的侧重点，未知值按today处理
func focusFor(timeframe string) string {
	if focus, ok := timeframeFocus[timeframe]; ok {
		return focus
	}
	return timeframeFocus[TimeframeToday]
}

func buildUserPrompt(req TipsRequest) string {
	farm, weather := req.FarmProfile, req.WeatherData
	return fmt.Sprintf(userPromptTemplate,
		farm.Location,
		strings.Join(farm.Crops, ", "),
		farm.FarmSize,
		farm.Experience,
		weather.Temperature,
		weather.Humidity,
		weather.Rainfall,
		weather.Season,
		req.MarketData.describe(),
		focusFor(req.Timeframe),
	)
}
