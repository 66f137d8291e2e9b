package insights

import (
	"time"

	"github.com/hospitalkpi/kpi/internal/domain/hospital"
	"github.com/hospitalkpi/kpi/internal/platform/randsrc"
)

var federatedMessages = map[hospital.FederatedState]string{
	hospital.StateOnline:   "Participating in global round",
	hospital.StateTraining: "Local training in progress",
	hospital.StateOffline:  "Awaiting connectivity",
	hospital.StateDegraded: "Reduced data quality detected",
}

// FederatedStatuses reports one status per hospital. Hospitals that have
// not reported a state are assigned a random one.
func FederatedStatuses(hospitals []hospital.Hospital, rnd randsrc.Source, now time.Time) []FederatedStatus {
	out := make([]FederatedStatus, 0, len(hospitals))
	for _, h := range hospitals {
		state := h.FederatedState
		if !state.Valid() {
			state = hospital.States[rnd.IntN(len(hospital.States))]
		}
		ago := time.Duration(300+rnd.IntN(7200-300)) * time.Second
		out = append(out, FederatedStatus{
			HospitalID: h.ID,
			State:      state,
			LastSync:   now.Add(-ago),
			Progress:   randsrc.Uniform(rnd, 0, 100),
			Message:    federatedMessages[state],
		})
	}
	return out
}
