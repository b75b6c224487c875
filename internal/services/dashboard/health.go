package dashboard

import (
	"net/http"
	"time"

	"github.com/AdakHaddad/capdash/internal/model"
)

// handleHealthz reports a coarse health summary. Transport trouble is a
// status indicator here, never a hard failure: the session keeps retrying
// on its own.
func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	st := struct {
		Status        string  `json:"status"`
		MQTT          string  `json:"mqtt"`
		StoreOK       bool    `json:"store_ok"`
		InfluxErrAgeS float64 `json:"influx_error_age_sec"`
	}{
		MQTT:          s.ConnStatus().String(),
		StoreOK:       s.records != nil,
		InfluxErrAgeS: s.hist.LastErrorAge().Seconds(),
	}
	connected := s.ConnStatus() == model.ConnConnected
	switch {
	case connected && st.StoreOK && s.hist.LastErrorAge() > 30*time.Second:
		st.Status = "ok"
	case connected || st.StoreOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	writeJSON(w, http.StatusOK, st)
}

// handleReadyz gates readiness on a live broker session.
func (s *Service) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	ready := s.ConnStatus() == model.ConnConnected
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]bool{"ready": ready})
}
