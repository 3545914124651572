package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"houser/internal/model"
	"houser/internal/utils"
)

const (
	greetingFallback      = "I am Houser AI, your UAE real estate advisor. How can I help you?"
	greetingErrorFallback = "How can I assist you with your property needs today?"

	narratedResults = 5
)

// LLMNarrator writes advisor prose with a language model, falling back to
// fixed sentences when no model is configured
type LLMNarrator struct {
	llm *LLMClient
}

// NewLLMNarrator creates a narrator
func NewLLMNarrator(llm *LLMClient) *LLMNarrator {
	return &LLMNarrator{llm: llm}
}

// Narrate streams a short commentary on the results
func (n *LLMNarrator) Narrate(ctx context.Context, req NarrationRequest, emit func(string) error) error {
	name := req.UserName
	if name == "" {
		name = "Client"
	}

	if !n.llm.Enabled() {
		return emit(fmt.Sprintf("%s, I found %d properties for you.", name, len(req.Results)))
	}

	snippets := make([]string, 0, narratedResults)
	for i, r := range req.Results {
		if i == narratedResults {
			break
		}
		match := "EXACT MATCH"
		if !r.IsExactMatch {
			match = "STRATEGIC RECOMMENDATION"
		}
		snippets = append(snippets, fmt.Sprintf("[%s] %s (%s, %s Beds, %s)",
			match, r.Title, utils.FormatAED(r.Price), r.Beds, r.Location))
	}

	prompt := fmt.Sprintf(`You are Houser AI, a UAE real estate advisor.
Narrate these %d results for %s.

Query: %s
Findings: %s
Match status: fallback=%t, supplemented=%t

Rules:
1. Professional and data-centric. Address the user as %s.
2. If a price or type looks inconsistent (for example a 15,000 sale price), call it out as a data anomaly.
3. Never invent locations.
4. Two or three sentences.`,
		len(req.Results), name, req.Message, strings.Join(snippets, "; "),
		req.IsFallback, req.IsSupplemented, name)

	cfg := n.llm.Config()
	return n.llm.Stream(ctx, "narrate", []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompt),
		llms.TextParts(llms.ChatMessageTypeHuman, "Narrate the findings professionally."),
	}, emit,
		llms.WithTemperature(cfg.NarrativeTemperature),
		llms.WithMaxTokens(cfg.NarrativeMaxTokens),
	)
}

// NarrateStats explains a market snapshot in two or three sentences
func (n *LLMNarrator) NarrateStats(ctx context.Context, message string, snapshot *model.StatsSnapshot, session *model.SessionContext) string {
	name := session.DisplayName()
	if snapshot == nil {
		return fmt.Sprintf("%s, I found no active listings for that market.", name)
	}
	if !n.llm.Enabled() {
		return fmt.Sprintf("%s, I am analyzing the latest market data for you.", name)
	}

	prompt := fmt.Sprintf(`You are a senior market analyst at Houser AI.
Narrate statistics for %s regarding: %s

Data: Area=%s, AvgPrice=%s, Listings=%d.

Rules:
1. Professional and analytical.
2. Explain the investment significance.
3. Two or three sentences.`,
		name, message, snapshot.Area, utils.FormatThousands(snapshot.Prices.Avg), snapshot.Counts.Total)

	cfg := n.llm.Config()
	text, err := n.llm.Complete(ctx, "stats", []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompt),
		llms.TextParts(llms.ChatMessageTypeHuman, "Narrate the stats."),
	},
		llms.WithTemperature(cfg.NarrativeTemperature),
		llms.WithMaxTokens(cfg.NarrativeMaxTokens),
	)
	if err != nil || text == "" {
		return fmt.Sprintf("The market in %s shows an average entry of %s.", snapshot.Area, utils.FormatAED(snapshot.Prices.Avg))
	}
	return text
}

// Greet answers a short message in one sentence
func (n *LLMNarrator) Greet(ctx context.Context, message string) string {
	if !n.llm.Enabled() {
		return greetingFallback
	}

	text, err := n.llm.Complete(ctx, "greet", []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "You are a brief, professional UAE real estate assistant. Reply in one helpful sentence."),
		llms.TextParts(llms.ChatMessageTypeHuman, message),
	},
		llms.WithTemperature(n.llm.Config().NarrativeTemperature),
		llms.WithMaxTokens(100),
	)
	if err != nil || text == "" {
		return greetingErrorFallback
	}
	return text
}
