package insights

import (
	"sync"
	"time"

	"github.com/hospitalkpi/kpi/internal/platform/randsrc"
)

const (
	gatewayUpMessage   = "Python ML pipeline reachable"
	gatewayDownMessage = "ML pipeline unreachable - retrying"
)

// Gateway simulates the health check of the external ML pipeline. It owns
// the last successful heartbeat.
type Gateway struct {
	mu            sync.Mutex
	rnd           randsrc.Source
	now           func() time.Time
	lastHeartbeat time.Time
}

// NewGateway starts with a heartbeat at construction time.
func NewGateway(rnd randsrc.Source, now func() time.Time) *Gateway {
	if now == nil {
		now = time.Now
	}
	return &Gateway{rnd: rnd, now: now, lastHeartbeat: now().UTC()}
}

// Check pings the pipeline. A successful check refreshes the heartbeat.
func (g *Gateway) Check() GatewayStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	reachable := g.rnd.Float64() > 0.1
	msg := gatewayDownMessage
	if reachable {
		g.lastHeartbeat = g.now().UTC()
		msg = gatewayUpMessage
	}
	return GatewayStatus{Reachable: reachable, LastHeartbeat: g.lastHeartbeat, Message: msg}
}
