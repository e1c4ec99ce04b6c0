package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/disambig/internal/history"
	"github.com/scrypster/disambig/internal/pattern"
	"github.com/scrypster/disambig/pkg/types"
)

func invoiceParse() types.ParsedPattern {
	return types.ParsedPattern{
		Classes: []types.ParsedClass{{Identifier: "Invoice", Name: "Invoice", Relevant: true}},
	}
}

func overdueParse() types.ParsedPattern {
	p := invoiceParse()
	p.Intents = []types.ParsedIntent{{
		Identifier:      "GetOverdue",
		Instruction:     "list overdue invoices",
		Target:          "Invoice",
		TargetRelevance: 5,
		IntentType:      types.IntentSelection,
		Relevant:        true,
		Arguments: []types.ParsedArgument{
			{Identifier: "days", Description: "days past due", Type: "int", Relevant: true},
		},
	}}
	return p
}

func ingest(t *testing.T, p *pattern.Pattern, parsed types.ParsedPattern) pattern.IngestReport {
	t.Helper()
	report, err := p.UpdateWithParsedData(parsed)
	require.NoError(t, err)
	return report
}

func rank(path string, score float64) types.RankedCandidate {
	return types.RankedCandidate{Path: path, Score: score, Label: path, Description: "candidate " + path}
}

// resolveInvoice drives the Invoice class to the resolved tier.
func resolveInvoice(t *testing.T, p *pattern.Pattern) {
	t.Helper()
	out, err := p.ApplyRanking(types.KindClass, "Invoice", []types.RankedCandidate{rank("model/invoice", 5)})
	require.NoError(t, err)
	require.Equal(t, types.TierResolved, out.Tier)
}

func TestIngest_DraftsNewClass(t *testing.T) {
	p := pattern.New("overdue invoices", nil)

	report := ingest(t, p, types.ParsedPattern{
		Classes: []types.ParsedClass{{Identifier: "Invoice", Name: "Invoice"}},
	})

	assert.Equal(t, []string{"Invoice"}, report.DraftedClasses)
	d, ok := p.Classes().Draft("Invoice")
	require.True(t, ok)
	assert.Equal(t, "Invoice", d.Name)
	assert.Equal(t, 0, d.UsedBy.Len())

	doc := p.Serialize()
	require.Len(t, doc.ClassesSum, 1)
	assert.Equal(t, "Invoice", doc.ClassesSum[0].Identifier)
	assert.Equal(t, types.TierDraft, doc.ClassesSum[0].Kind)
	assert.Contains(t, doc.ClassDrafts, "Invoice")
}

func TestApplyRanking_SingleClearWinnerResolves(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, invoiceParse())

	out, err := p.ApplyRanking(types.KindClass, "Invoice", []types.RankedCandidate{
		{Path: "model/invoice", Score: 5, Label: "Invoice", Description: "Customer invoice"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.TierResolved, out.Tier)
	assert.Equal(t, "model/invoice", out.GraphPath)

	r, ok := p.Classes().Resolved("Invoice")
	require.True(t, ok)
	assert.Equal(t, "model/invoice", r.GraphPath)

	_, stillDraft := p.Classes().Draft("Invoice")
	assert.False(t, stillDraft)

	h, ok := p.History().Class("Invoice")
	require.True(t, ok)
	assert.Equal(t, *r, h)
}

func TestApplyRanking_TwoSurvivorsBecomeAmbiguousThenSolve(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, overdueParse())

	out, err := p.ApplyRanking(types.KindIntent, "GetOverdue", []types.RankedCandidate{
		rank("model/invoice/late", 4),
		rank("model/invoice/overdue", 4),
	})
	require.NoError(t, err)
	assert.Equal(t, types.TierAmbiguous, out.Tier)
	assert.Equal(t, 2, out.Options)

	a, ok := p.Intents().Ambiguity("GetOverdue")
	require.True(t, ok)
	require.Len(t, a.Options, 2)
	assert.Equal(t, "model/invoice/overdue", a.Options[1].Path())

	out, err = p.Solve(types.KindIntent, "GetOverdue", "model/invoice/overdue")
	require.NoError(t, err)
	assert.Equal(t, types.TierResolved, out.Tier)

	r, ok := p.Intents().Resolved("GetOverdue")
	require.True(t, ok)
	assert.Equal(t, "model/invoice/overdue", r.GraphPath)
	_, stillAmbiguous := p.Intents().Ambiguity("GetOverdue")
	assert.False(t, stillAmbiguous)

	h, ok := p.History().Intent("GetOverdue")
	require.True(t, ok)
	assert.Equal(t, "model/invoice/overdue", h.GraphPath)
}

func TestIngest_UsedByWiredOnceAcrossIngestions(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, invoiceParse())
	resolveInvoice(t, p)

	ingest(t, p, overdueParse())
	ingest(t, p, overdueParse())

	r, ok := p.Classes().Resolved("Invoice")
	require.True(t, ok)
	assert.Equal(t, []string{"GetOverdue"}, r.UsedBy.Items())

	h, _ := p.History().Class("Invoice")
	assert.Equal(t, []string{"GetOverdue"}, h.UsedBy.Items())
}

func TestSolve_UnknownAmbiguityLeavesStateUnchanged(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, overdueParse())
	before := p.Serialize()
	beforeHistory := p.History().Get()

	_, err := p.Solve(types.KindClass, "Unknown", "any/path")
	assert.ErrorIs(t, err, pattern.ErrUnknownAmbiguity)

	assert.Equal(t, before, p.Serialize())
	assert.Equal(t, beforeHistory, p.History().Get())
}

func TestSolve_UnmatchedPathLeavesAmbiguity(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, invoiceParse())
	_, err := p.ApplyRanking(types.KindClass, "Invoice", []types.RankedCandidate{
		rank("model/invoice", 3), rank("model/bill", 3),
	})
	require.NoError(t, err)

	_, err = p.Solve(types.KindClass, "Invoice", "model/receipt")
	assert.ErrorIs(t, err, pattern.ErrOptionNotFound)
	assert.Equal(t, types.TierAmbiguous, p.TierOf(types.KindClass, "Invoice"))
	assert.Nil(t, p.History().Search("Invoice"))
}

func TestSolve_Argument(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, overdueParse())

	_, err := p.ApplyRanking(types.KindArgument, "days", []types.RankedCandidate{
		rank("model/invoice/due_days", 3), rank("model/invoice/age", 3),
	})
	require.NoError(t, err)

	_, err = p.Solve(types.KindArgument, "days", "model/invoice/age")
	require.NoError(t, err)

	r, ok := p.Arguments().Resolved("days")
	require.True(t, ok)
	assert.Equal(t, "model/invoice/age", r.GraphPath)
	assert.Equal(t, "GetOverdue", r.Intent)
}

func TestApplyRanking_NoCandidatesKeepsDraft(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, invoiceParse())
	require.NoError(t, p.MarkLoading(types.KindClass, "Invoice", true))
	require.NoError(t, p.MarkReranking(types.KindClass, "Invoice", true))

	_, err := p.ApplyRanking(types.KindClass, "Invoice", []types.RankedCandidate{rank("model/x", 1)})
	assert.ErrorIs(t, err, pattern.ErrNoCandidatesFound)
	assert.True(t, pattern.IsPending(err))

	d, ok := p.Classes().Draft("Invoice")
	require.True(t, ok)
	assert.False(t, d.Loading)
	assert.False(t, d.Reranking)
}

func TestApplyRanking_StaleDraft(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, invoiceParse())
	ingest(t, p, types.ParsedPattern{})

	_, err := p.ApplyRanking(types.KindClass, "Invoice", []types.RankedCandidate{rank("model/invoice", 5)})
	assert.ErrorIs(t, err, pattern.ErrUnknownEntity)
	assert.False(t, pattern.IsPending(err))
}

func TestIngest_TargetNotFoundIsReported(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	parsed := overdueParse()
	parsed.Classes = nil

	report := ingest(t, p, parsed)

	require.Equal(t, 1, report.UnresolvedTargets())
	assert.ErrorIs(t, report.TargetErrors[0], pattern.ErrTargetNotFound)
	assert.True(t, pattern.IsPending(report.TargetErrors[0]))
	assert.Equal(t, []string{"GetOverdue"}, report.DraftedIntents)
}

func TestIngest_TargetOnlyInHistory(t *testing.T) {
	ledger := history.New()
	ledger.AddClass(types.ClassFixed{
		Class:     types.Class{Identifier: "Invoice", Name: "Invoice"},
		GraphPath: "model/invoice",
	})
	p := pattern.New("overdue invoices", ledger)

	parsed := overdueParse()
	parsed.Classes = nil
	report := ingest(t, p, parsed)
	assert.Zero(t, report.UnresolvedTargets())

	h, _ := ledger.Class("Invoice")
	assert.Equal(t, []string{"GetOverdue"}, h.UsedBy.Items())
	assert.Equal(t, types.TierResolved, p.GetTarget(types.Intent{Target: "Invoice"}).Tier())

	p.GetTarget(types.Intent{Target: "Invoice"}).Dependents().Add("Mutated")
	h, _ = ledger.Class("Invoice")
	assert.Equal(t, []string{"GetOverdue"}, h.UsedBy.Items())
}

func TestIngest_IntentInHistoryKeepsArguments(t *testing.T) {
	ledger := history.New()
	ledger.AddIntent(types.IntentFixed{
		Intent:    types.Intent{Identifier: "GetOverdue", Target: "Invoice"},
		GraphPath: "model/invoice/overdue",
	})
	p := pattern.New("overdue invoices", ledger)

	report := ingest(t, p, overdueParse())

	assert.Empty(t, report.DraftedIntents)
	assert.Contains(t, report.Kept, "GetOverdue")
	assert.Equal(t, []string{"days"}, report.DraftedArguments)
	assert.Equal(t, "", string(p.TierOf(types.KindIntent, "GetOverdue")))
}

func TestIngest_NeverOverwritesAmbiguousOrResolved(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, overdueParse())
	resolveInvoice(t, p)
	_, err := p.ApplyRanking(types.KindIntent, "GetOverdue", []types.RankedCandidate{
		rank("a", 3), rank("b", 3),
	})
	require.NoError(t, err)

	report := ingest(t, p, overdueParse())

	assert.Empty(t, report.DraftedClasses)
	assert.Empty(t, report.DraftedIntents)
	assert.Equal(t, types.TierResolved, p.TierOf(types.KindClass, "Invoice"))
	assert.Equal(t, types.TierAmbiguous, p.TierOf(types.KindIntent, "GetOverdue"))
}

func TestIngest_CarriesInFlightFlags(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, overdueParse())
	require.NoError(t, p.MarkLoading(types.KindIntent, "GetOverdue", true))

	ingest(t, p, overdueParse())

	d, ok := p.Intents().Draft("GetOverdue")
	require.True(t, ok)
	assert.True(t, d.Loading)
	assert.True(t, d.Finished)

	for _, pd := range p.PendingDrafts() {
		assert.NotEqual(t, "GetOverdue", pd.Identifier, "in-flight draft must not be handed out again")
	}
}

func TestIngest_InvalidParseChangesNothing(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, invoiceParse())
	before := p.Serialize()

	_, err := p.UpdateWithParsedData(types.ParsedPattern{
		Classes: []types.ParsedClass{{Identifier: ""}},
	})
	assert.ErrorIs(t, err, types.ErrInvalidParse)
	assert.Equal(t, before, p.Serialize())
}

func TestArgumentResolutionBumpsIntentVersion(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, overdueParse())
	resolveInvoice(t, p)
	_, err := p.ApplyRanking(types.KindIntent, "GetOverdue", []types.RankedCandidate{rank("model/invoice/overdue", 5)})
	require.NoError(t, err)

	_, err = p.ApplyRanking(types.KindArgument, "days", []types.RankedCandidate{rank("model/invoice/due_days", 5)})
	require.NoError(t, err)

	r, _ := p.Intents().Resolved("GetOverdue")
	assert.Equal(t, 1, r.Version)
	h, _ := p.History().Intent("GetOverdue")
	assert.Equal(t, 1, h.Version)
}

func TestPendingDrafts_ScopesFollowResolvedTargets(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	ingest(t, p, overdueParse())
	resolveInvoice(t, p)

	pending := p.PendingDrafts()
	require.Len(t, pending, 2)
	assert.Equal(t, pattern.PendingDraft{
		Kind:       types.KindIntent,
		Identifier: "GetOverdue",
		Text:       "list overdue invoices",
		Scope:      "model/invoice",
	}, pending[0])
	assert.Equal(t, types.KindArgument, pending[1].Kind)
	assert.Equal(t, "days past due int", pending[1].Text)
	assert.Equal(t, "", pending[1].Scope)
}

func TestPendingDrafts_SkipsUnfinished(t *testing.T) {
	p := pattern.New("overdue invoices", nil)
	parsed := invoiceParse()
	parsed.Classes[0].Relevant = false
	ingest(t, p, parsed)

	assert.Empty(t, p.PendingDrafts())
}
