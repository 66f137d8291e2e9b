// Package leaderboard ranks hospitals by the mean of the latest value of
// every series they own.
package leaderboard

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hospitalkpi/kpi/internal/domain/hospital"
	"github.com/hospitalkpi/kpi/internal/domain/kpi"
)

// UnknownHospital is reported when a series references a hospital id with
// no matching record.
const UnknownHospital = "Unknown"

// Entry is one ranked hospital. EfficiencyScore is rounded to two decimals.
type Entry struct {
	HospitalID      string  `json:"hospitalId"`
	HospitalName    string  `json:"hospitalName"`
	EfficiencyScore float64 `json:"efficiencyScore"`
	Rank            int     `json:"rank"`
	KPICount        int     `json:"-"`
}

type aggregate struct {
	hospitalID string
	sum        decimal.Decimal
	count      int
	mean       decimal.Decimal
}

// latestValue returns the value of the point with the newest timestamp.
// Equal timestamps resolve to the later insertion.
func latestValue(s *kpi.Series) (decimal.Decimal, bool) {
	if len(s.History) == 0 {
		return decimal.Zero, false
	}
	best := s.History[0]
	for _, p := range s.History[1:] {
		if !p.Timestamp.Before(best.Timestamp) {
			best = p
		}
	}
	return best.Value, true
}

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.RequireFromString("0.5")
)

// roundScore rounds to two places with ties toward positive infinity.
func roundScore(d decimal.Decimal) float64 {
	f, _ := d.Mul(hundred).Add(half).Floor().Div(hundred).Float64()
	return f
}

// Build aggregates the series into ranked entries. Hospitals are ordered by
// mean latest value, then by series count, then by id; ranks are positional
// starting at 1. The second return lists hospital ids that had no record.
func Build(series []kpi.Series, hospitals []hospital.Hospital) ([]Entry, []string) {
	byID := make(map[string]*aggregate)
	var order []*aggregate
	for i := range series {
		v, ok := latestValue(&series[i])
		if !ok {
			continue
		}
		id := series[i].Key.HospitalID
		agg, seen := byID[id]
		if !seen {
			agg = &aggregate{hospitalID: id}
			byID[id] = agg
			order = append(order, agg)
		}
		agg.sum = agg.sum.Add(v)
		agg.count++
	}
	for _, agg := range order {
		agg.mean = agg.sum.Div(decimal.NewFromInt(int64(agg.count)))
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if c := a.mean.Cmp(b.mean); c != 0 {
			return c > 0
		}
		if a.count != b.count {
			return a.count > b.count
		}
		return a.hospitalID < b.hospitalID
	})

	names := make(map[string]string, len(hospitals))
	for _, h := range hospitals {
		names[h.ID] = h.Name
	}

	entries := make([]Entry, 0, len(order))
	var orphans []string
	for i, agg := range order {
		name, ok := names[agg.hospitalID]
		if !ok {
			name = UnknownHospital
			orphans = append(orphans, agg.hospitalID)
		}
		entries = append(entries, Entry{
			HospitalID:      agg.hospitalID,
			HospitalName:    name,
			EfficiencyScore: roundScore(agg.mean),
			Rank:            i + 1,
			KPICount:        agg.count,
		})
	}
	return entries, orphans
}
