package insights

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hospitalkpi/kpi/internal/domain/kpi"
	"github.com/hospitalkpi/kpi/internal/platform/randsrc"
)

const predictionHorizon = 7 * 24 * time.Hour

var defaultBase = decimal.NewFromInt(50)

// baseValue is the latest value, else the target, else 50.
func baseValue(s *kpi.Series) decimal.Decimal {
	if p, ok := s.Latest(); ok {
		return p.Value
	}
	if s.Target != nil {
		return *s.Target
	}
	return defaultBase
}

// Predict projects every series one horizon ahead by a random delta in
// [-5%, +12%).
func Predict(series []kpi.Series, rnd randsrc.Source, now time.Time) []Prediction {
	out := make([]Prediction, 0, len(series))
	for i := range series {
		s := &series[i]
		delta := randsrc.Uniform(rnd, -0.05, 0.12)
		factor := decimal.NewFromFloat(1 + delta)
		out = append(out, Prediction{
			HospitalID:     s.Key.HospitalID,
			Department:     s.Key.Department,
			Metric:         s.Key.Metric,
			PredictedValue: baseValue(s).Mul(factor).Round(2),
			PredictedFor:   now.Add(predictionHorizon),
			Explanation:    fmt.Sprintf("Trend-based projection using %s%% delta", decimal.NewFromFloat(delta*100).Round(0).String()),
		})
	}
	return out
}
