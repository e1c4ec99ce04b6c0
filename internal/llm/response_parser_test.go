package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/disambig/pkg/types"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"chatter around", `Sure! {"a":{"b":2}} hope this helps`, `{"a":{"b":2}}`},
		{"brace in string", `{"a":"}{"} trailing`, `{"a":"}{"}`},
		{"escaped quote", `{"a":"say \"}\""} x`, `{"a":"say \"}\""}`},
		{"no json", "nothing here", "nothing here"},
		{"unterminated", `{"a":`, `{"a":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}

func TestParseRankings(t *testing.T) {
	candidates := []types.Candidate{
		{Path: "billing/invoice", Label: "Invoice", Description: "A bill"},
		{Path: "billing/receipt", Label: "Receipt"},
	}
	text := "Here you go:\n```json\n" + `{"rankings":[
		{"path":"billing/invoice","score":7},
		{"path":"made/up","score":5},
		{"path":"billing/receipt","score":-1},
		{"path":"billing/invoice","score":1}
	]}` + "\n```"

	got, err := ParseRankings(text, candidates)
	require.NoError(t, err)
	assert.Equal(t, []types.RankedCandidate{
		{Path: "billing/invoice", Label: "Invoice", Description: "A bill", Score: 5},
		{Path: "billing/receipt", Label: "Receipt", Score: 0},
	}, got)
}

func TestParseRankings_Malformed(t *testing.T) {
	_, err := ParseRankings("I cannot rank these.", nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestRerankPrompt(t *testing.T) {
	p := RerankPrompt("overdue invoices", "Invoice", []types.Candidate{
		{Path: "billing/invoice", Label: "Invoice", Description: "A bill"},
	})
	assert.Contains(t, p, "overdue invoices")
	assert.Contains(t, p, `1. path=billing/invoice label="Invoice" description="A bill"`)
	assert.Contains(t, p, `"rankings"`)
}
