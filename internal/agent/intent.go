package agent

import "strings"

// Intent is the coarse topic of a visitor message.
type Intent string

const (
	IntentGreeting           Intent = "greeting"
	IntentProviderComparison Intent = "provider_comparison"
	IntentMultilingual       Intent = "multilingual"
	IntentPricing            Intent = "pricing"
	IntentTechnicalDetails   Intent = "technical_details"
	IntentDemoRequest        Intent = "demo_request"
	IntentClosing            Intent = "closing"
	IntentGeneralInquiry     Intent = "general_inquiry"
)

type intentRule struct {
	intent   Intent
	keywords []string
}

// intentRules are tried in order and the first hit wins. Keywords match as
// substrings of the lower-cased message, so "hi" also fires inside "this".
var intentRules = []intentRule{
	{IntentGreeting, []string{"hello", "hi", "hey", "start", "begin"}},
	{IntentProviderComparison, []string{"compare", "difference", "vs", "versus", "which", "better"}},
	{IntentMultilingual, []string{
		"language", "multilingual", "belarusian", "polish", "lithuanian", "latvian", "estonian",
	}},
	{IntentPricing, []string{"price", "cost", "pricing", "budget", "expensive", "cheap", "free"}},
	{IntentTechnicalDetails, []string{"technical", "api", "integration", "implementation", "code", "setup"}},
	{IntentDemoRequest, []string{"demo", "sample", "hear", "show", "demonstrate", "example"}},
	{IntentClosing, []string{"bye", "goodbye", "thanks", "thank you", "end", "finish"}},
}

// ClassifyIntent returns the first intent whose keywords appear in message,
// or IntentGeneralInquiry.
func ClassifyIntent(message string) Intent {
	lowered := strings.ToLower(message)

	for _, rule := range intentRules {
		if containsAny(lowered, rule.keywords) {
			return rule.intent
		}
	}

	return IntentGeneralInquiry
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}

	return false
}
