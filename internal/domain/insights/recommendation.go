package insights

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hospitalkpi/kpi/internal/domain/kpi"
	"github.com/hospitalkpi/kpi/internal/platform/randsrc"
)

// MaxRecommendations caps how many series receive a recommendation.
const MaxRecommendations = 5

// Playbook is the fixed set of canned actions.
var Playbook = []string{
	"Optimize discharge planning workflows",
	"Introduce targeted staff coaching",
	"Review supply chain reorder points",
	"Increase bedside rounding frequency",
	"Launch patient education refresh",
}

// Recommend picks a playbook action and an impact estimate for each of the
// first MaxRecommendations series.
func Recommend(series []kpi.Series, rnd randsrc.Source) []Recommendation {
	n := len(series)
	if n > MaxRecommendations {
		n = MaxRecommendations
	}
	out := make([]Recommendation, 0, n)
	for i := 0; i < n; i++ {
		s := &series[i]
		action := Playbook[rnd.IntN(len(Playbook))]
		improvement := decimal.NewFromFloat(randsrc.Uniform(rnd, 3, 12))
		out = append(out, Recommendation{
			HospitalID:     s.Key.HospitalID,
			Department:     s.Key.Department,
			Metric:         s.Key.Metric,
			Recommendation: fmt.Sprintf("%s for metric %s", action, s.Key.Metric),
			Impact:         fmt.Sprintf("Projected %s%% improvement", improvement.StringFixed(1)),
		})
	}
	return out
}
