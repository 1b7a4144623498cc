package agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/book-expert/voice-demo/internal/agent"
)

func TestClassifyIntent(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		message string
		want    agent.Intent
	}{
		{"Hello there", agent.IntentGreeting},
		{"Can you COMPARE them?", agent.IntentProviderComparison},
		{"openai versus google", agent.IntentProviderComparison},
		{"Do you speak Polish?", agent.IntentMultilingual},
		{"How much does it cost?", agent.IntentPricing},
		{"Is it free?", agent.IntentPricing},
		{"Tell me about the API", agent.IntentTechnicalDetails},
		{"Can I get a demo?", agent.IntentDemoRequest},
		{"Goodbye", agent.IntentClosing},
		{"Thank you", agent.IntentClosing},
		{"Tell me more", agent.IntentGeneralInquiry},
		{"", agent.IntentGeneralInquiry},
		// Substring matching: "this" contains "hi".
		{"What is this?", agent.IntentGreeting},
		// Earlier rules win: greeting beats pricing.
		{"Hey, what is the price?", agent.IntentGreeting},
	}

	for _, testCase := range testCases {
		assert.Equal(t, testCase.want, agent.ClassifyIntent(testCase.message), testCase.message)
	}
}
