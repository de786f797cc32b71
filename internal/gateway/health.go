package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string `json:"status"`
	ServerVersion string `json:"server_version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		ServerVersion: ServerVersion,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
