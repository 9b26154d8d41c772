package analysis

import "fmt"

const systemPrompt = `You are an expert agronomist and plant pathologist specializing in East African agriculture, ` +
	`with deep knowledge of the crops grown by smallholder farmers in Rwanda, Uganda, Kenya and Tanzania. ` +
	`You diagnose crop diseases, pests and nutrient deficiencies from photos and give practical advice ` +
	`that uses locally available, affordable resources. Always answer with valid JSON only.`

const userPromptTemplate = `Analyze this %s plant image from %s.

Return ONLY a JSON object with exactly these fields:
{
  "health": number from 0 to 100 (overall plant health score),
  "disease": "name of the disease, pest or deficiency, or \"Healthy\"",
  "symptoms": ["visible symptom", "..."],
  "causes": ["likely cause", "..."],
  "severity": "none | low | moderate | high | critical",
  "confidence": number from 0 to 100 (confidence in this diagnosis),
  "immediateActions": ["action to take today", "..."],
  "treatments": ["treatment option", "..."],
  "prevention": ["prevention measure", "..."],
  "yieldImpact": "expected effect on yield",
  "growthStage": "estimated growth stage",
  "riskLevel": "low | medium | high",
  "localSolutions": ["solution using local resources", "..."],
  "marketAdvice": "advice on selling or storing the harvest"
}

The first nine fields are required. Do not add any text outside the JSON.`

// buildUserPrompt 生成带作物和地区信息的用户提示词
func buildUserPrompt(req AnalysisRequest) string {
	return fmt.Sprintf(userPromptTemplate, req.CropType, req.Location)
}
