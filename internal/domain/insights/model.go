// Package insights derives signals from KPI series: deviation-based
// anomalies, trend predictions, playbook recommendations, plus status views
// of the federated training network and the ML gateway.
//
// The predictive parts are randomized heuristics rather than a trained
// model. All randomness comes from an injected randsrc.Source.
package insights

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hospitalkpi/kpi/internal/domain/hospital"
)

// Severity grades an anomaly by its deviation from target.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Anomaly flags a series whose latest value strays from its target.
type Anomaly struct {
	HospitalID string          `json:"hospitalId"`
	Department string          `json:"department"`
	Metric     string          `json:"metric"`
	Deviation  decimal.Decimal `json:"deviation"`
	Severity   Severity        `json:"severity"`
	DetectedAt time.Time       `json:"detectedAt"`
	Summary    string          `json:"summary"`
}

// Prediction is a projected next value for a series.
type Prediction struct {
	HospitalID     string          `json:"hospitalId"`
	Department     string          `json:"department"`
	Metric         string          `json:"metric"`
	PredictedValue decimal.Decimal `json:"predictedValue"`
	PredictedFor   time.Time       `json:"predictedFor"`
	Explanation    string          `json:"explanation"`
}

// Recommendation is a playbook action for an underperforming series.
type Recommendation struct {
	HospitalID     string `json:"hospitalId"`
	Department     string `json:"department"`
	Metric         string `json:"metric"`
	Recommendation string `json:"recommendation"`
	Impact         string `json:"impact"`
}

// FederatedStatus reports one hospital's federated training round.
type FederatedStatus struct {
	HospitalID string                  `json:"hospitalId"`
	State      hospital.FederatedState `json:"state"`
	LastSync   time.Time               `json:"lastSync"`
	Progress   float64                 `json:"progress"`
	Message    string                  `json:"message"`
}

// GatewayStatus is the last known state of the ML gateway.
type GatewayStatus struct {
	Reachable     bool      `json:"reachable"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	Message       string    `json:"message"`
}
