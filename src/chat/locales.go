package chat

import "strings"

// Locale 一种语言的系统提示词和兜底回复
type Locale struct {
	Code         string
	SystemPrompt string
	EmptyMessage string // 消息为空
	RateLimited  string // 上游429
	Quota        string // 上游402
	Unavailable  string // 其他失败
}

// DefaultLocale 未知或缺省语言时使用
const DefaultLocale = "en"

var locales = map[string]Locale{
	"en": {
		Code: "en",
		SystemPrompt: "You are FarmAssist, a friendly agricultural advisor for smallholder farmers in Rwanda and East Africa. " +
			"Give practical, concise advice about crops, soil, pests, weather and markets, using resources farmers can find locally. " +
			"Answer in English. If a question is outside farming, gently steer the conversation back to agriculture.",
		EmptyMessage: "Please type your farming question so I can help.",
		RateLimited:  "I'm receiving a lot of questions right now. Please try again in a moment.",
		Quota:        "The AI service has reached its usage limit. Please try again later.",
		Unavailable:  "Sorry, I couldn't answer right now. Please try again shortly.",
	},
	"fr": {
		Code: "fr",
		SystemPrompt: "Vous êtes FarmAssist, un conseiller agricole bienveillant pour les petits exploitants du Rwanda et d'Afrique de l'Est. " +
			"Donnez des conseils pratiques et concis sur les cultures, le sol, les ravageurs, la météo et les marchés, en utilisant des ressources disponibles localement. " +
			"Répondez en français. Si une question ne concerne pas l'agriculture, ramenez poliment la conversation vers l'agriculture.",
		EmptyMessage: "Veuillez écrire votre question agricole pour que je puisse vous aider.",
		RateLimited:  "Je reçois beaucoup de questions en ce moment. Veuillez réessayer dans un instant.",
		Quota:        "Le service d'IA a atteint sa limite d'utilisation. Veuillez réessayer plus tard.",
		Unavailable:  "Désolé, je ne peux pas répondre pour le moment. Veuillez réessayer bientôt.",
	},
	"rw": {
		Code: "rw",
		SystemPrompt: "Uri FarmAssist, umujyanama w'ubuhinzi ufasha abahinzi bato bo mu Rwanda no mu Karere k'Afurika y'Iburasirazuba. " +
			"Tanga inama zifatika kandi ngufi ku bihingwa, ubutaka, udukoko, ikirere n'amasoko, ukoresheje ibikoresho biboneka hafi. " +
			"Subiza mu Kinyarwanda. Niba ikibazo kitari icy'ubuhinzi, garura ikiganiro ku buhinzi mu kinyabupfura.",
		EmptyMessage: "Andika ikibazo cyawe cy'ubuhinzi kugira ngo ngufashe.",
		RateLimited:  "Ndakira ibibazo byinshi muri iki gihe. Ongera ugerageze mu kanya gato.",
		Quota:        "Serivisi ya AI yageze ku mupaka w'ikoreshwa. Ongera ugerageze nyuma.",
		Unavailable:  "Mbabarira, sinshoboye gusubiza ubu. Ongera ugerageze vuba.",
	},
}

// LocaleFor 按语言代码选择，未知值回退到英文
func LocaleFor(code string) Locale {
	if l, ok := locales[strings.ToLower(strings.TrimSpace(code))]; ok {
		return l
	}
	return locales[DefaultLocale]
}
