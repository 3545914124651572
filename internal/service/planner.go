package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"houser/internal/errors"
	"houser/internal/logger"
	"houser/internal/model"
	"houser/internal/utils"
)

const (
	apiKeyMissingResponse = "AI service currently unavailable (API key missing)."

	defaultHistoryTurns = 6
	maxBedrooms         = 20
)

const planSystemPrompt = `You are the Lead Search Architect at Houser AI, a UAE real estate advisory.
Translate the user's request into a Search Plan.

Principles:
1. If the user asks for something cheap in an expensive area, plan the primary search for that area and add a fallback to a nearby, more affordable area.
2. You know the UAE. "Near Metro" in Dubai means areas such as Marina, JLT or Business Bay.
3. Map requested property types to one of: Apartment, Villa, Townhouse, Office, Penthouse, Duplex, Compound, Bungalow, Hotel & Hotel Apartment.

Plan types:
- search: property discovery. Requires searchPlan.
- stats: market data and price analysis. Put the city/area in searchPlan.primary.
- info: greetings, identity, or general questions that need no listing search.
- clarification: the request is too vague (e.g. "I want a house" with no city or budget).

Respond ONLY with JSON:
{
  "thought": "internal reasoning",
  "type": "search | stats | info | clarification",
  "searchPlan": {
    "primary": {
      "city": "Dubai|Abu Dhabi|Sharjah|Ajman",
      "area": "specific area",
      "beds": 2, "minPrice": 0, "maxPrice": 0,
      "propertyType": "buy|rent",
      "category": "Apartment",
      "isResidential": true
    },
    "fallback": {"area": "nearby area", "reason": "why"}
  },
  "response": "brief professional greeting or clarification",
  "wantsTable": false
}

Prices are in AED: "1.5M" = 1500000, "80k" = 80000. Omit fields the user did not mention.`

// LLMPlanner extracts chat plans with a language model
type LLMPlanner struct {
	llm          *LLMClient
	historyTurns int
}

// NewLLMPlanner creates a planner that includes up to historyTurns prior turns
func NewLLMPlanner(llm *LLMClient, historyTurns int) *LLMPlanner {
	if historyTurns <= 0 {
		historyTurns = defaultHistoryTurns
	}
	return &LLMPlanner{llm: llm, historyTurns: historyTurns}
}

// Extract asks the model for a plan and validates it. Without a configured
// model it returns an error-typed plan rather than failing.
func (p *LLMPlanner) Extract(ctx context.Context, message string, session *model.SessionContext) (*model.ChatPlan, error) {
	if !p.llm.Enabled() {
		return &model.ChatPlan{Type: model.PlanError, Response: apiKeyMissingResponse}, nil
	}

	cfg := p.llm.Config()
	content, err := p.llm.Complete(ctx, "plan", p.buildMessages(message, session),
		llms.WithTemperature(cfg.PlanTemperature),
		llms.WithMaxTokens(cfg.PlanMaxTokens),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, errors.New(errors.KindPlanning, "plan extraction failed", err)
	}

	var raw rawPlan
	if err := utils.ParseAIJSON(content, &raw); err != nil {
		logger.FromContext(ctx).Warn("unparseable plan", "content", content)
		return nil, errors.New(errors.KindPlanning, "plan is not valid JSON", err)
	}

	plan, err := validatePlan(raw)
	if err != nil {
		return nil, errors.New(errors.KindPlanning, "plan validation failed", err)
	}
	return plan, nil
}

func (p *LLMPlanner) buildMessages(message string, session *model.SessionContext) []llms.MessageContent {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, planSystemPrompt),
	}

	if name := session.ResolveUserName(); name != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem,
			fmt.Sprintf("The user's name is %s.", name)))
	}

	filters := []byte("{}")
	if session != nil && session.Filters != nil {
		if b, err := json.Marshal(session.Filters); err == nil {
			filters = b
		}
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem,
		fmt.Sprintf("Current Session State: Filters=%s, Page=%d.", filters, session.CurrentPage())))

	for _, turn := range session.RecentHistory(p.historyTurns) {
		messages = append(messages, llms.TextParts(chatRole(turn.Role), turn.Content))
	}

	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, message))
}

// flexNumber accepts a JSON number, a numeric string, or null
type flexNumber struct {
	Value *float64
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	s := strings.Trim(string(data), `"`)
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", string(data))
	}
	n.Value = &v
	return nil
}

type rawFilter struct {
	City          string     `json:"city"`
	Area          string     `json:"area"`
	Beds          flexNumber `json:"beds"`
	MinPrice      flexNumber `json:"minPrice"`
	MaxPrice      flexNumber `json:"maxPrice"`
	PropertyType  string     `json:"propertyType"`
	Type          string     `json:"type"`
	Category      string     `json:"category"`
	IsResidential *bool      `json:"isResidential"`
}

type rawPlan struct {
	Thought    string `json:"thought"`
	Type       string `json:"type"`
	SearchPlan *struct {
		Primary  rawFilter          `json:"primary"`
		Fallback model.FallbackHint `json:"fallback"`
	} `json:"searchPlan"`
	Response   string `json:"response"`
	WantsTable bool   `json:"wantsTable"`
}

// validatePlan applies business rules to model output
func validatePlan(raw rawPlan) (*model.ChatPlan, error) {
	planType := strings.ToLower(strings.TrimSpace(raw.Type))
	switch planType {
	case "":
		return nil, fmt.Errorf("plan is missing type")
	case model.PlanSearch, model.PlanStats, model.PlanInfo, model.PlanClarification, model.PlanError:
	default:
		return nil, fmt.Errorf("unknown plan type: %s", raw.Type)
	}

	plan := &model.ChatPlan{
		Type:       planType,
		Thought:    strings.TrimSpace(raw.Thought),
		Response:   strings.TrimSpace(raw.Response),
		WantsTable: raw.WantsTable,
	}

	if raw.SearchPlan != nil {
		primary, err := validateFilter(raw.SearchPlan.Primary)
		if err != nil {
			return nil, err
		}
		fallback := model.FallbackHint{
			Area:   utils.NormalizeArea(raw.SearchPlan.Fallback.Area),
			Reason: strings.TrimSpace(raw.SearchPlan.Fallback.Reason),
		}
		if strings.EqualFold(fallback.Area, primary.Area) {
			fallback = model.FallbackHint{}
		}
		plan.SearchPlan = &model.SearchPlan{Primary: primary, Fallback: fallback}
	} else if planType == model.PlanSearch {
		plan.SearchPlan = &model.SearchPlan{}
	}

	return plan, nil
}

func validateFilter(raw rawFilter) (model.Filter, error) {
	f := model.Filter{
		City:          utils.NormalizeCity(raw.City),
		Area:          utils.NormalizeArea(raw.Area),
		IsResidential: raw.IsResidential,
	}

	if c := strings.TrimSpace(raw.Category); c != "" {
		// unknown categories are dropped rather than failing the plan
		if canonical, ok := model.CanonicalCategory(c); ok {
			f.Category = canonical
		}
	}

	propertyType := raw.PropertyType
	if propertyType == "" {
		propertyType = raw.Type
	}
	switch strings.ToLower(strings.TrimSpace(propertyType)) {
	case "":
	case "buy", "sale", "sell", "purchase":
		f.PropertyType = model.PropertyTypeBuy
	case "rent", "rental", "lease":
		f.PropertyType = model.PropertyTypeRent
	default:
		return model.Filter{}, fmt.Errorf("invalid propertyType: %s, must be buy or rent", propertyType)
	}

	if v := raw.Beds.Value; v != nil {
		if *v < 0 || *v > maxBedrooms {
			return model.Filter{}, fmt.Errorf("beds must be between 0 and %d", maxBedrooms)
		}
		beds := int(*v)
		f.Beds = &beds
	}

	if v := raw.MinPrice.Value; v != nil {
		if *v < 0 {
			return model.Filter{}, fmt.Errorf("minPrice cannot be negative")
		}
		if *v > 0 {
			f.MinPrice = v
		}
	}
	if v := raw.MaxPrice.Value; v != nil {
		if *v < 0 {
			return model.Filter{}, fmt.Errorf("maxPrice cannot be negative")
		}
		if *v > 0 {
			f.MaxPrice = v
		}
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return model.Filter{}, fmt.Errorf("minPrice (%.0f) cannot be greater than maxPrice (%.0f)", *f.MinPrice, *f.MaxPrice)
	}

	return f, nil
}
