package scoring

import (
	"sort"

	"github.com/sells-group/rename-cli/internal/model"
)

// Rank returns a copy of results ordered by descending score. Ties keep
// acquisition order.
func Rank(results []model.ScoredResult) []model.ScoredResult {
	out := append([]model.ScoredResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Position < out[j].Position
	})
	return out
}
