package insights

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hospitalkpi/kpi/internal/domain/kpi"
	"github.com/hospitalkpi/kpi/internal/platform/randsrc"
)

// MaxAnomalies caps the number of findings returned.
const MaxAnomalies = 5

var (
	anomalyCutoff = decimal.RequireFromString("0.15")
	mediumCutoff  = decimal.RequireFromString("0.20")
	highCutoff    = decimal.RequireFromString("0.35")
	hundred       = decimal.NewFromInt(100)
)

// classify returns the severity for a deviation ratio, or false when the
// ratio is below the anomaly cutoff.
func classify(ratio decimal.Decimal) (Severity, bool) {
	switch {
	case ratio.LessThan(anomalyCutoff):
		return "", false
	case ratio.GreaterThan(highCutoff):
		return SeverityHigh, true
	case ratio.GreaterThan(mediumCutoff):
		return SeverityMedium, true
	default:
		return SeverityLow, true
	}
}

// scoreSeries compares the latest value with the mean of the whole history.
// Series with fewer than two points are skipped.
func scoreSeries(s *kpi.Series, rnd randsrc.Source, now time.Time) (Anomaly, bool) {
	if len(s.History) < 2 {
		return Anomaly{}, false
	}
	values := s.Values()
	mean := decimal.Avg(values[0], values[1:]...)
	latest := values[len(values)-1]

	deviation := latest.Sub(mean).Abs()
	ratio := decimal.Zero
	if !mean.IsZero() {
		ratio = deviation.Div(mean)
	}
	severity, ok := classify(ratio)
	if !ok {
		return Anomaly{}, false
	}

	noise := decimal.NewFromFloat(randsrc.Uniform(rnd, 0.8, 1.2))
	return Anomaly{
		HospitalID: s.Key.HospitalID,
		Department: s.Key.Department,
		Metric:     s.Key.Metric,
		Deviation:  deviation.Mul(noise).Round(2),
		Severity:   severity,
		DetectedAt: now,
		Summary:    fmt.Sprintf("%s deviated %s%% from rolling mean", s.Key.Metric, ratio.Mul(hundred).Round(0).String()),
	}, true
}

// DetectAnomalies scores every series and returns at most MaxAnomalies
// findings ordered by reported deviation, largest first.
func DetectAnomalies(series []kpi.Series, rnd randsrc.Source, now time.Time) []Anomaly {
	out := make([]Anomaly, 0, len(series))
	for i := range series {
		if a, ok := scoreSeries(&series[i], rnd, now); ok {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Deviation.GreaterThan(out[j].Deviation)
	})
	if len(out) > MaxAnomalies {
		out = out[:MaxAnomalies]
	}
	return out
}
