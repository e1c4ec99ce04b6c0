package types_test

import (
	"testing"

	"github.com/scrypster/disambig/pkg/types"
)

func TestValidTiers(t *testing.T) {
	for _, tier := range []types.Tier{types.TierDraft, types.TierAmbiguous, types.TierResolved} {
		if !types.IsValidTier(tier) {
			t.Errorf("Expected %s to be a valid tier", tier)
		}
	}
}

func TestInvalidTiers(t *testing.T) {
	for _, tier := range []types.Tier{"", "resolved", "ambiguous", "DRAFT"} {
		if types.IsValidTier(tier) {
			t.Errorf("Expected %q to be an invalid tier", tier)
		}
	}
}

func TestTierTransitions(t *testing.T) {
	tests := []struct {
		from, to types.Tier
		want     bool
	}{
		{"", types.TierDraft, true},
		{"", types.TierAmbiguous, false},
		{"", types.TierResolved, false},
		{types.TierDraft, types.TierAmbiguous, true},
		{types.TierDraft, types.TierResolved, true},
		{types.TierDraft, types.TierDraft, false},
		{types.TierAmbiguous, types.TierResolved, true},
		{types.TierAmbiguous, types.TierDraft, false},
		{types.TierResolved, types.TierDraft, false},
		{types.TierResolved, types.TierAmbiguous, false},
	}

	for _, tt := range tests {
		if got := types.IsValidTierTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("IsValidTierTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	k, err := types.ParseKind(" Intent ")
	if err != nil {
		t.Fatalf("ParseKind: %v", err)
	}
	if k != types.KindIntent {
		t.Errorf("got %q, want %q", k, types.KindIntent)
	}

	if _, err := types.ParseKind("relationship"); err == nil {
		t.Error("Expected an error for an unknown kind")
	}
}
