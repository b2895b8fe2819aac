package tips

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgeteer/internal/core"
)

func sampleInput(t *testing.T) Input {
	t.Helper()
	now := time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)
	incomes := []core.Income{{ID: "i1", Amount: core.Money{Cents: 300000}}}
	budgets := []core.Budget{
		{ID: "b1", Category: "Food", Limit: core.Money{Cents: 50000}},
		{ID: "b2", Category: "Fun", Limit: core.Money{Cents: 10000}},
	}
	var expenses []core.Expense
	for i := 0; i < 60; i++ {
		expenses = append(expenses, core.Expense{
			ID: fmt.Sprintf("e%d", i), BudgetID: "b1", Category: "Food",
			Description: fmt.Sprintf("meal %d", i), Amount: core.Money{Cents: 700}, Date: core.NewDate(2025, 1, 19),
		})
	}
	expenses = append(expenses, core.Expense{ID: "x", BudgetID: "b2", Category: "Fun", Description: "concert",
		Amount: core.Money{Cents: 12000}, Date: core.NewDate(2025, 1, 2)})
	expenses = append(expenses, core.Expense{ID: "y", Category: "Misc", Description: "gift",
		Amount: core.Money{Cents: 1500}, Date: core.NewDate(2025, 1, 1)})

	period, err := core.IncomePeriod{Type: core.Monthly, Start: core.NewDate(2025, 1, 1)}.Status(now)
	require.NoError(t, err)
	return NewInput(core.NewLedger(incomes, budgets, expenses), period, now)
}

func TestBuildPrompt(t *testing.T) {
	in := sampleInput(t)
	assert.Len(t, in.Recent, MaxRecentExpenses)

	p := BuildPrompt(in)
	assert.Contains(t, p, "Income period: monthly starting 2025-01-01, expires 2025-02-01 (12 days remaining)")
	assert.Contains(t, p, "Total income: $3000.00")
	assert.Contains(t, p, "- Food: limit $500.00, spent $420.00 (84%)")
	assert.Contains(t, p, "- Fun: limit $100.00, spent $120.00 (120%)")
	assert.Contains(t, p, `- 2025-01-19 Food "meal 0" $7.00`)
	assert.Equal(t, MaxRecentExpenses, strings.Count(p, `"meal `))
}

func TestRuleGenerator(t *testing.T) {
	tips, err := RuleGenerator{}.Generate(context.Background(), sampleInput(t))
	require.NoError(t, err)

	var contents []string
	for _, tip := range tips {
		assert.Equal(t, SourceRules, tip.Source)
		contents = append(contents, tip.Content)
	}
	all := strings.Join(contents, "\n")
	assert.Contains(t, all, "Fun budget is exceeded by $20.00")
	assert.Contains(t, all, "used 84% of your Food budget")
	assert.Contains(t, all, "$2400.00 of your income is not assigned")
	assert.Contains(t, all, "$15.00 was spent outside any budget")
}

func TestRuleGeneratorEmptyLedger(t *testing.T) {
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	period, err := core.DefaultPeriod(now).Status(now)
	require.NoError(t, err)

	tips, err := RuleGenerator{}.Generate(context.Background(), NewInput(core.NewLedger(nil, nil, nil), period, now))
	require.NoError(t, err)
	require.NotEmpty(t, tips)
	assert.Contains(t, tips[0].Content, "Add your income sources")
}

func TestParseTips(t *testing.T) {
	got := parseTips("1. Cook at home\n\n- Cancel unused subscriptions\n* Set a weekly cap  \n")
	assert.Equal(t, []string{"Cook at home", "Cancel unused subscriptions", "Set a weekly cap"}, got)
}

func newFakeOpenAI(t *testing.T, status int, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Contains(t, req.Messages[1].Content, "Budgets:")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": reply}}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerator(t *testing.T) {
	srv := newFakeOpenAI(t, http.StatusOK, "- Eat out less\n- Move $100 to savings")
	g := NewOpenAIGenerator(OpenAIConfig{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL})

	tips, err := g.Generate(context.Background(), sampleInput(t))
	require.NoError(t, err)
	require.Len(t, tips, 2)
	assert.Equal(t, core.Tip{Content: "Eat out less", Source: SourceOpenAI}, tips[0])
}

func TestFallbackGenerator(t *testing.T) {
	srv := newFakeOpenAI(t, http.StatusInternalServerError, "")
	g := FallbackGenerator{
		Primary:   NewOpenAIGenerator(OpenAIConfig{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL}),
		Secondary: RuleGenerator{},
	}
	tips, err := g.Generate(context.Background(), sampleInput(t))
	require.NoError(t, err)
	require.NotEmpty(t, tips)
	assert.Equal(t, SourceRules, tips[0].Source)
}

type staticGen struct {
	tips []core.Tip
	err  error
}

func (s staticGen) Generate(context.Context, Input) ([]core.Tip, error) { return s.tips, s.err }

func TestFallbackGeneratorEmptyPrimary(t *testing.T) {
	g := FallbackGenerator{Primary: staticGen{}, Secondary: staticGen{tips: []core.Tip{{Content: "x"}}}}
	tips, err := g.Generate(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, "x", tips[0].Content)

	g = FallbackGenerator{Secondary: staticGen{err: errors.New("down")}}
	_, err = g.Generate(context.Background(), Input{})
	assert.Error(t, err)
}
