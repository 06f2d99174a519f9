package processor

import (
	"sort"

	"optionflow/models"
)

// TopN returns up to n contracts ranked by total premium, largest first.
// The sort is stable so contracts with equal premium keep their fetch order,
// making repeated runs over the same data deterministic. The input slice is
// not modified.
func TopN(contracts []models.Contract, n int) []models.Contract {
	if n <= 0 {
		return nil
	}

	ranked := make([]models.Contract, len(contracts))
	copy(ranked, contracts)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalPremium > ranked[j].TotalPremium
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
