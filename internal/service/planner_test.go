package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"houser/internal/config"
	"houser/internal/errors"
	"houser/internal/model"
)

func testLLM(m llms.Model) *LLMClient {
	return NewLLMClientWithModel(m, config.OpenAIConfig{
		PlanMaxTokens:        400,
		NarrativeTemperature: 0.7,
		NarrativeMaxTokens:   300,
		Enabled:              true,
	}, nil)
}

func messageText(m llms.MessageContent) string {
	if len(m.Parts) == 0 {
		return ""
	}
	if tc, ok := m.Parts[0].(llms.TextContent); ok {
		return tc.Text
	}
	return ""
}

func TestPlanner_Disabled(t *testing.T) {
	p := NewLLMPlanner(nil, 0)

	plan, err := p.Extract(context.Background(), "2 bed in Marina", nil)
	require.NoError(t, err)
	assert.Equal(t, model.PlanError, plan.Type)
	assert.Contains(t, plan.Response, "AI service currently unavailable")
}

func TestPlanner_Extract(t *testing.T) {
	fm := &fakeModel{reply: "```json\n" + `{
		"thought": "cheap in an expensive area",
		"type": "search",
		"searchPlan": {
			"primary": {"city": "dubay", "area": " Marina ", "beds": "2", "maxPrice": 90000, "propertyType": "rental", "category": "apartment"},
			"fallback": {"area": "JLT", "reason": "More affordable nearby"}
		},
		"response": "Let me look.",
		"wantsTable": true
	}` + "\n```"}
	p := NewLLMPlanner(testLLM(fm), 2)

	session := &model.SessionContext{
		History: []model.ChatMessage{
			{Role: "user", Content: "hi, my name is Layla"},
			{Role: "assistant", Content: "Hello Layla"},
			{Role: "user", Content: "show me villas"},
			{Role: "assistant", Content: "Sure"},
		},
		Page: 2,
	}

	plan, err := p.Extract(context.Background(), "cheap 2 bed in Marina for rent", session)
	require.NoError(t, err)

	assert.Equal(t, model.PlanSearch, plan.Type)
	assert.True(t, plan.WantsTable)
	assert.Equal(t, "Let me look.", plan.Response)
	require.NotNil(t, plan.SearchPlan)

	primary := plan.SearchPlan.Primary
	assert.Equal(t, "Dubai", primary.City)
	assert.Equal(t, "Marina", primary.Area)
	require.NotNil(t, primary.Beds)
	assert.Equal(t, 2, *primary.Beds)
	require.NotNil(t, primary.MaxPrice)
	assert.Equal(t, 90000.0, *primary.MaxPrice)
	assert.Nil(t, primary.MinPrice)
	assert.Equal(t, model.PropertyTypeRent, primary.PropertyType)
	assert.Equal(t, "Apartment", primary.Category)
	assert.Equal(t, "JLT", plan.SearchPlan.Fallback.Area)

	assert.True(t, fm.options.JSONMode)
	assert.Equal(t, 400, fm.options.MaxTokens)

	// system prompt, name, session state, two history turns, message
	require.Len(t, fm.messages, 6)
	assert.Equal(t, "The user's name is Layla.", messageText(fm.messages[1]))
	assert.Equal(t, "Current Session State: Filters={}, Page=2.", messageText(fm.messages[2]))
	assert.Equal(t, llms.ChatMessageTypeHuman, fm.messages[3].Role)
	assert.Equal(t, "show me villas", messageText(fm.messages[3]))
	assert.Equal(t, llms.ChatMessageTypeAI, fm.messages[4].Role)
	assert.Equal(t, "cheap 2 bed in Marina for rent", messageText(fm.messages[5]))
}

func TestPlanner_Failures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "model error", err: fmt.Errorf("503")},
		{name: "not json", reply: "I cannot help with that"},
		{name: "missing type", reply: `{"response": "hi"}`},
		{name: "unknown type", reply: `{"type": "weather"}`},
		{name: "bad property type", reply: `{"type": "search", "searchPlan": {"primary": {"propertyType": "swap"}}}`},
		{name: "inverted prices", reply: `{"type": "search", "searchPlan": {"primary": {"minPrice": 5, "maxPrice": 1}}}`},
		{name: "too many beds", reply: `{"type": "search", "searchPlan": {"primary": {"beds": 40}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewLLMPlanner(testLLM(&fakeModel{reply: tt.reply, err: tt.err}), 0)

			plan, err := p.Extract(context.Background(), "anything", nil)
			require.Error(t, err)
			assert.Nil(t, plan)
			assert.Equal(t, errors.KindPlanning, errors.KindOf(err))
		})
	}
}

func TestValidatePlan(t *testing.T) {
	t.Run("search without searchPlan", func(t *testing.T) {
		plan, err := validatePlan(rawPlan{Type: "Search"})
		require.NoError(t, err)
		assert.Equal(t, model.PlanSearch, plan.Type)
		require.NotNil(t, plan.SearchPlan)
		assert.Equal(t, model.Filter{}, plan.SearchPlan.Primary)
	})

	t.Run("info keeps no searchPlan", func(t *testing.T) {
		plan, err := validatePlan(rawPlan{Type: "info", Response: " Hello! "})
		require.NoError(t, err)
		assert.Nil(t, plan.SearchPlan)
		assert.Equal(t, "Hello!", plan.Response)
	})

	t.Run("fallback equal to primary is dropped", func(t *testing.T) {
		var raw rawPlan
		require.NoError(t, jsonUnmarshal(`{"type":"search","searchPlan":{"primary":{"area":"Marina"},"fallback":{"area":"marina","reason":"x"}}}`, &raw))
		plan, err := validatePlan(raw)
		require.NoError(t, err)
		assert.Empty(t, plan.SearchPlan.Fallback.Area)
	})

	t.Run("unknown category dropped and zero prices unset", func(t *testing.T) {
		var raw rawPlan
		require.NoError(t, jsonUnmarshal(`{"type":"search","searchPlan":{"primary":{"category":"castle","minPrice":0,"maxPrice":null,"type":"buy"}}}`, &raw))
		plan, err := validatePlan(raw)
		require.NoError(t, err)
		assert.Empty(t, plan.SearchPlan.Primary.Category)
		assert.Nil(t, plan.SearchPlan.Primary.MinPrice)
		assert.Nil(t, plan.SearchPlan.Primary.MaxPrice)
		assert.Equal(t, model.PropertyTypeBuy, plan.SearchPlan.Primary.PropertyType)
	})
}

func TestFlexNumber(t *testing.T) {
	var v struct {
		A flexNumber `json:"a"`
		B flexNumber `json:"b"`
		C flexNumber `json:"c"`
		D flexNumber `json:"d"`
	}
	require.NoError(t, jsonUnmarshal(`{"a": 3, "b": "1,500,000", "c": null, "d": ""}`, &v))
	require.NotNil(t, v.A.Value)
	assert.Equal(t, 3.0, *v.A.Value)
	require.NotNil(t, v.B.Value)
	assert.Equal(t, 1_500_000.0, *v.B.Value)
	assert.Nil(t, v.C.Value)
	assert.Nil(t, v.D.Value)

	require.Error(t, jsonUnmarshal(`{"a": "lots"}`, &v))
}
