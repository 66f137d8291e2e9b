package hospital

import "time"

// FederatedState is the hospital's participation state in federated training.
type FederatedState string

const (
	StateOnline   FederatedState = "ONLINE"
	StateTraining FederatedState = "TRAINING"
	StateOffline  FederatedState = "OFFLINE"
	StateDegraded FederatedState = "DEGRADED"
)

// States lists every federated state in declaration order.
var States = []FederatedState{StateOnline, StateTraining, StateOffline, StateDegraded}

// Valid reports whether s is one of the known states. The empty state means
// the hospital has not reported yet.
func (s FederatedState) Valid() bool {
	switch s {
	case StateOnline, StateTraining, StateOffline, StateDegraded:
		return true
	}
	return false
}

// Active reports whether the hospital counts toward active totals.
func (s FederatedState) Active() bool {
	return s == StateOnline || s == StateTraining
}

// Hospital is a read-only snapshot of a hospital record.
type Hospital struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Code           string         `json:"code,omitempty" yaml:"code"`
	City           string         `json:"city,omitempty" yaml:"city"`
	Country        string         `json:"country,omitempty" yaml:"country"`
	FederatedState FederatedState `json:"federatedState,omitempty" yaml:"federatedState"`
	CreatedAt      time.Time      `json:"createdAt" yaml:"-"`
	UpdatedAt      time.Time      `json:"updatedAt" yaml:"-"`
}

// Counts summarizes hospitals for the dashboard.
type Counts struct {
	Total  int
	Active int
}

// CountOf tallies a hospital list.
func CountOf(hs []Hospital) Counts {
	c := Counts{Total: len(hs)}
	for _, h := range hs {
		if h.FederatedState.Active() {
			c.Active++
		}
	}
	return c
}
