package processor

import (
	"testing"

	"optionflow/models"
)

func premiumContract(symbol string, premium float64) models.Contract {
	return models.Contract{ContractSymbol: symbol, TotalPremium: premium}
}

func TestTopNRanksByPremium(t *testing.T) {
	contracts := []models.Contract{
		premiumContract("A", 500_000),
		premiumContract("B", 2_000_000),
		premiumContract("C", 100_000),
	}

	got := TopN(contracts, 2)
	if len(got) != 2 {
		t.Fatalf("got %d contracts, want 2", len(got))
	}
	if got[0].ContractSymbol != "B" || got[1].ContractSymbol != "A" {
		t.Errorf("ranking wrong: %s, %s", got[0].ContractSymbol, got[1].ContractSymbol)
	}
}

func TestTopNStableOnTies(t *testing.T) {
	contracts := []models.Contract{
		premiumContract("FIRST", 100),
		premiumContract("SECOND", 100),
		premiumContract("THIRD", 100),
	}

	got := TopN(contracts, 3)
	for i, want := range []string{"FIRST", "SECOND", "THIRD"} {
		if got[i].ContractSymbol != want {
			t.Errorf("tied contracts reordered: slot %d = %s, want %s", i, got[i].ContractSymbol, want)
		}
	}
}

func TestTopNDoesNotMutateInput(t *testing.T) {
	contracts := []models.Contract{
		premiumContract("LOW", 1),
		premiumContract("HIGH", 2),
	}

	TopN(contracts, 1)
	if contracts[0].ContractSymbol != "LOW" {
		t.Error("input slice was reordered")
	}
}

func TestTopNShortInput(t *testing.T) {
	got := TopN([]models.Contract{premiumContract("A", 1)}, 20)
	if len(got) != 1 {
		t.Fatalf("got %d contracts, want 1", len(got))
	}
	if TopN(nil, 0) != nil {
		t.Error("n = 0 should yield nil")
	}
}
