package agent

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gottino/rmirror-cloud/internal/logger"
	"github.com/gottino/rmirror-cloud/pkg/apiclient"
)

// Status is the agent's local health surface, consumed by the device UI.
type Status struct {
	Connected     bool                   `json:"connected"`
	Authenticated bool                   `json:"authenticated"`
	QueueDepth    int                    `json:"queue_depth"`
	Deferred      int                    `json:"deferred"`
	LastSyncAt    *time.Time             `json:"last_sync_at,omitempty"`
	Quota         *apiclient.QuotaStatus `json:"quota,omitempty"`
}

// Status returns a point-in-time snapshot. The quota part is fetched from
// the server best-effort; a failure leaves it nil rather than failing the
// whole status call.
func (a *Agent) Status() Status {
	a.mu.Lock()
	s := Status{
		Connected:     a.connected,
		Authenticated: a.authenticated,
		Deferred:      a.deferred,
		LastSyncAt:    a.lastSyncAt,
	}
	a.mu.Unlock()
	s.QueueDepth = a.QueueDepth()

	if s.Authenticated {
		if quota, err := a.client.GetQuotaStatus(); err == nil {
			s.Quota = quota
		}
	}
	return s
}

// StatusServer serves the read-only status endpoint on localhost.
type StatusServer struct {
	agent  *Agent
	server *http.Server
	addr   string
}

// NewStatusServer creates a status server bound to addr.
func NewStatusServer(agent *Agent, addr string) *StatusServer {
	mux := http.NewServeMux()
	s := &StatusServer{
		agent: agent,
		addr:  addr,
	}
	mux.HandleFunc("/status", s.handleStatus)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Fails fast when the port is taken, which usually
// means another agent instance is running.
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("status server failed", "error", err)
		}
	}()

	logger.Debug("status server listening", "addr", s.addr)
	return nil
}

// Stop shuts the status server down.
func (s *StatusServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.agent.Status())
}
