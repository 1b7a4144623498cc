package agent

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/book-expert/voice-demo/internal/core"
)

const (
	fmtAvailableProviders = "\n\nAvailable providers: %s"
	fmtSupportedLanguages = "\n\nSupported languages: %s"
	fmtProviderPricing    = "\n\n%s: %s"
	fmtDemoSuggestion     = "\n\nI can demonstrate with: '%s'"
	listSeparator         = ", "
	maxPricingProviders   = 2
)

const generalInquiryText = "I'm here to help you explore AI voice solutions! I can help you with:\n" +
	"• Comparing different TTS providers\n" +
	"• Multilingual voice capabilities\n" +
	"• Pricing and technical details\n" +
	"• Live demonstrations\n\n" +
	"What would you like to know more about?"

// Turn is everything a Responder sees for one visitor message.
type Turn struct {
	Text      string
	Language  string
	Intent    Intent
	Providers []core.Provider
	// History holds earlier entries of the session, oldest first, without
	// the current message.
	History []Entry
}

// Responder produces the agent's reply text.
type Responder interface {
	Respond(ctx context.Context, turn Turn) (string, error)
	Name() string
}

// ProviderInfo is the sales blurb for one provider.
type ProviderInfo struct {
	Name      string   `json:"name"`
	Strengths []string `json:"strengths"`
	Pricing   string   `json:"pricing"`
	BestFor   string   `json:"best_for"`
}

// ProviderDetails describes the commercial providers. The local engine has
// no entry.
var ProviderDetails = map[core.Provider]ProviderInfo{
	core.ProviderOpenAI: {
		Name: "OpenAI TTS",
		Strengths: []string{
			"Very natural speech synthesis",
			"Multiple voice options",
			"Fast generation",
			"Reliable API",
			"Good for general use cases",
		},
		Pricing: "Pay-per-use, reasonable pricing",
		BestFor: "General applications, content creation, accessibility",
	},
	core.ProviderGoogle: {
		Name: "Google Cloud TTS",
		Strengths: []string{
			"Wide language support",
			"SSML support for advanced control",
			"Neural voices available",
			"Enterprise-grade reliability",
			"Good integration with Google services",
		},
		Pricing: "Pay-per-use, enterprise pricing",
		BestFor: "Enterprise applications, Google ecosystem integration",
	},
}

// DemoTexts holds a short sample sentence per language.
var DemoTexts = map[string]string{
	"be": "Прывітанне! Гэта дэманстрацыя беларускай мовы.",
	"pl": "Cześć! To jest demonstracja języka polskiego.",
	"lt": "Labas! Tai lietuvių kalbos demonstracija.",
	"lv": "Sveiki! Šī ir latviešu valodas demonstrācija.",
	"et": "Tere! See on eesti keele demonstratsioon.",
	"en": "Hello! This is a demonstration of our TTS capabilities.",
}

var scriptedPhrases = map[Intent][]string{
	IntentGreeting: {
		"Hello! I'm your RenovaVision AI Voice Specialist. I can help you explore the best TTS solutions " +
			"for your needs. What kind of voice application are you looking to build?",
		"Welcome to RenovaVision! I'm here to guide you through our AI voice solutions. Are you interested " +
			"in multilingual support, voice cloning, or general TTS capabilities?",
		"Hi there! I'm excited to help you find the perfect TTS provider for your project. What's your " +
			"primary use case for AI voice technology?",
	},
	IntentProviderComparison: {
		"Let me show you a comparison of different TTS providers. Each has unique strengths - would you " +
			"like to hear samples from different providers?",
		"I'd be happy to demonstrate the differences between TTS providers. We can compare quality, speed, " +
			"and language support. Which aspect is most important to you?",
		"Great question! Let me generate some samples so you can hear the differences firsthand. What text " +
			"would you like me to use for the comparison?",
	},
	IntentMultilingual: {
		"Excellent choice! We support multiple languages including Belarusian, Polish, Lithuanian, Latvian, " +
			"and Estonian. Would you like to hear samples in any specific language?",
		"Our multilingual capabilities are one of our strongest features. I can demonstrate voice quality " +
			"across different languages. Which language would you like to explore?",
		"Perfect! Multilingual support is crucial for global applications. Let me show you how our TTS " +
			"providers handle different languages.",
	},
	IntentPricing: {
		"Pricing varies by provider and usage. We have solutions for every budget - from free open-source " +
			"options to premium enterprise services. What's your expected usage volume?",
		"We have solutions for every budget - from free open-source options to premium enterprise services. " +
			"What's your expected usage volume?",
		"Let me break down the pricing for you. We can start with cost-effective solutions and scale up as " +
			"your needs grow.",
	},
	IntentTechnicalDetails: {
		"I can provide detailed technical specifications for each provider. Are you looking for API " +
			"documentation, integration guides, or performance benchmarks?",
		"Technical implementation varies by provider. Some offer simple APIs while others provide advanced " +
			"features like voice cloning. What's your technical expertise level?",
		"Let me walk you through the technical requirements for each solution. Do you need real-time " +
			"generation or can you work with pre-generated audio?",
	},
	IntentDemoRequest: {
		"Absolutely! Let me generate a sample for you right now. What text would you like to hear, and " +
			"which language should I use?",
		"I'd love to demonstrate our capabilities! I can show you different voices and languages. Just " +
			"tell me what you'd like to hear.",
		"Perfect timing for a demo! I can generate samples from multiple providers so you can compare " +
			"quality and style.",
	},
	IntentClosing: {
		"Thank you for exploring RenovaVision's AI voice solutions! Would you like me to send you detailed " +
			"information about any specific provider?",
		"I hope this demo has been helpful! Feel free to ask any follow-up questions about implementation " +
			"or pricing.",
		"It's been great showing you our TTS capabilities! Let me know if you need any additional " +
			"information or technical support.",
	},
}

// ScriptedResponder answers from canned phrases. It never fails.
type ScriptedResponder struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewScriptedResponder picks phrases with rng. *rand.Rand is not safe for
// concurrent use, so the responder serializes access to it.
func NewScriptedResponder(rng *rand.Rand) *ScriptedResponder {
	return &ScriptedResponder{rng: rng}
}

// Name identifies the responder in replies and logs.
func (r *ScriptedResponder) Name() string {
	return "scripted"
}

// Respond builds the reply for turn.Intent.
func (r *ScriptedResponder) Respond(_ context.Context, turn Turn) (string, error) {
	phrases, ok := scriptedPhrases[turn.Intent]
	if !ok {
		return generalInquiryText, nil
	}

	var reply strings.Builder

	reply.WriteString(r.pick(phrases))

	switch turn.Intent {
	case IntentProviderComparison:
		if len(turn.Providers) > 0 {
			fmt.Fprintf(&reply, fmtAvailableProviders, joinProviders(turn.Providers))
		}
	case IntentMultilingual:
		names := make([]string, 0, len(core.Languages))
		for _, lang := range core.Languages {
			names = append(names, lang.Name)
		}

		fmt.Fprintf(&reply, fmtSupportedLanguages, strings.Join(names, listSeparator))
	case IntentPricing:
		for _, provider := range turn.Providers[:min(len(turn.Providers), maxPricingProviders)] {
			if info, known := ProviderDetails[provider]; known {
				fmt.Fprintf(&reply, fmtProviderPricing, info.Name, info.Pricing)
			}
		}
	case IntentDemoRequest:
		fmt.Fprintf(&reply, fmtDemoSuggestion, DemoText(turn.Language))
	default:
	}

	return reply.String(), nil
}

func (r *ScriptedResponder) pick(phrases []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return phrases[r.rng.IntN(len(phrases))]
}

// DemoText returns the sample sentence for language, English if unknown.
func DemoText(language string) string {
	if sample, ok := DemoTexts[language]; ok {
		return sample
	}

	return DemoTexts[core.DefaultLanguage]
}

func joinProviders(providers []core.Provider) string {
	names := make([]string, len(providers))
	for i, provider := range providers {
		names[i] = provider.String()
	}

	return strings.Join(names, listSeparator)
}
