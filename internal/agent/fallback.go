package agent

import (
	"context"
	"strings"

	"github.com/book-expert/voice-demo/internal/core"
)

type localizedReplies struct {
	greeting  string
	pricing   string
	languages string
	thanks    string
}

var (
	fallbackGreetingWords  = []string{"hello", "hi", "hey", "start", "begin"}
	fallbackPricingWords   = []string{"price", "cost", "pricing", "budget"}
	fallbackLanguagesWords = []string{
		"language", "multilingual", "belarusian", "polish", "lithuanian", "latvian", "estonian",
	}
)

var fallbackReplies = map[string]localizedReplies{
	"be": {
		greeting:  "Прывітанне! Я прадажнік RenovaVision. Што вас цікавіць?",
		pricing:   "Цэны залежаць ад выкарыстання. Які ў вас бюджэт?",
		languages: "Мы падтрымліваем 6 моў. Якую хочаце пачуць?",
		thanks:    "Дзякуй! Што вас цікавіць?",
	},
	"pl": {
		greeting:  "Cześć! Jestem sprzedawcą RenovaVision. Co Cię interesuje?",
		pricing:   "Ceny zależą od użycia. Jaki masz budżet?",
		languages: "Obsługujemy 6 języków. Który chcesz usłyszeć?",
		thanks:    "Dziękuję! Co Cię interesuje?",
	},
	"lt": {
		greeting:  "Labas! Aš esu RenovaVision pardavėjas. Kas jus domina?",
		pricing:   "Kainos priklauso nuo naudojimo. Koks jūsų biudžetas?",
		languages: "Palaikome 6 kalbas. Kurią norite išgirsti?",
		thanks:    "Ačiū! Kas jus domina?",
	},
	"lv": {
		greeting:  "Sveiki! Esmu RenovaVision pārdevējs. Kas jūs interesē?",
		pricing:   "Cenas atkarīgas no lietošanas. Kāds jūsu budžets?",
		languages: "Atbalstām 6 valodas. Kādu vēlaties dzirdēt?",
		thanks:    "Paldies! Kas jūs interesē?",
	},
	"et": {
		greeting:  "Tere! Olen RenovaVision müügimees. Mis teid huvitab?",
		pricing:   "Hinnad sõltuvad kasutamisest. Mis on teie eelarve?",
		languages: "Toetame 6 keelt. Millist soovite kuulda?",
		thanks:    "Tänan! Mis teid huvitab?",
	},
	"en": {
		greeting:  "Hello! I'm a RenovaVision sales rep. What interests you?",
		pricing:   "Pricing depends on usage. What's your budget?",
		languages: "We support 6 languages. Which would you like to hear?",
		thanks:    "Thanks! What interests you?",
	},
}

// LocalizedResponder gives one short keyword-driven answer in the visitor's
// language. It backs the LLM responder when the API is unreachable.
type LocalizedResponder struct{}

// NewLocalizedResponder returns the offline responder.
func NewLocalizedResponder() *LocalizedResponder {
	return &LocalizedResponder{}
}

// Name identifies the responder in replies and logs.
func (*LocalizedResponder) Name() string {
	return "fallback"
}

// Respond never fails.
func (*LocalizedResponder) Respond(_ context.Context, turn Turn) (string, error) {
	return LocalizedReply(turn.Text, turn.Language), nil
}

// LocalizedReply checks greeting, pricing and language keywords in that
// order and answers in language (English when unsupported).
func LocalizedReply(message, language string) string {
	replies := fallbackReplies[core.NormalizeLanguage(language)]
	lowered := strings.ToLower(message)

	switch {
	case containsAny(lowered, fallbackGreetingWords):
		return replies.greeting
	case containsAny(lowered, fallbackPricingWords):
		return replies.pricing
	case containsAny(lowered, fallbackLanguagesWords):
		return replies.languages
	default:
		return replies.thanks
	}
}
