package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AdakHaddad/capdash/internal/dispatch"
	"github.com/AdakHaddad/capdash/internal/mascot"
	"github.com/AdakHaddad/capdash/internal/model"
	"github.com/AdakHaddad/capdash/pkg/mqttconn"
)

// NewHTTPMux builds the dashboard HTTP surface.
func (s *Service) NewHTTPMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/dashboard/data", s.handleDashboardData)
	mux.HandleFunc("/commands", s.handleCommands)
	mux.HandleFunc("/commands/recent", s.handleRecentCommands)
	mux.HandleFunc("/schedules", s.handleSchedules)
	mux.HandleFunc("/schedules/", s.handleScheduleByID)
	mux.HandleFunc("/schedules/next", s.handleNextWindow)
	mux.HandleFunc("/history/recent", s.handleRecentHistory)
	mux.HandleFunc("/api/relay", s.handleRelay)

	return mux
}

// GET /dashboard/data — the full snapshot the UI renders from.
func (s *Service) handleDashboardData(w http.ResponseWriter, r *http.Request) {
	snap := s.State()
	resp := struct {
		Sensors       model.SensorReading `json:"sensors"`
		Pumps         model.PumpState     `json:"pumps"`
		Valves        model.ValveState    `json:"valves"`
		Mode          string              `json:"mode,omitempty"`
		StatusMessage string              `json:"status_message,omitempty"`
		Source        model.SourceTag     `json:"source"`
		Mascot        mascot.Mood         `json:"mascot"`
		Connection    string              `json:"connection"`
		LastUpdate    string              `json:"last_update,omitempty"`
		StoreOK       bool                `json:"store_ok"`
	}{
		Sensors:       snap.Sensors,
		Pumps:         snap.Pumps,
		Valves:        snap.Valves,
		Mode:          snap.Mode,
		StatusMessage: snap.StatusMessage,
		Source:        snap.Source,
		Mascot:        mascot.Derive(snap.Sensors, snap.Pumps),
		Connection:    s.ConnStatus().String(),
		StoreOK:       s.records != nil,
	}
	if !snap.LastUpdate.IsZero() {
		resp.LastUpdate = snap.LastUpdate.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /commands {"command":"stop-all","duration_sec":0}
func (s *Service) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Command     string `json:"command"`
		DurationSec int    `json:"duration_sec"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp(err))
		return
	}
	via, err := s.DispatchCommand(r.Context(), req.Command, req.DurationSec, "manual")
	if err != nil {
		// validation errors are the caller's fault, transport errors are not
		code := http.StatusBadGateway
		if errors.Is(err, model.ErrUnknownCommand) || errors.Is(err, dispatch.ErrDurationOutOfRange) {
			code = http.StatusBadRequest
		}
		writeJSON(w, code, errResp(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "via": via})
}

// GET /commands/recent?limit=50
func (s *Service) handleRecentCommands(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		storeUnavailable(w)
		return
	}
	recs, err := s.records.RecentCommands(r.Context(), intParam(r, "limit", 50))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp(err))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// GET /schedules | POST /schedules
func (s *Service) handleSchedules(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		storeUnavailable(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := s.records.ListSchedules(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errResp(err))
			return
		}
		if list == nil {
			list = []model.ScheduleEntry{}
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var e model.ScheduleEntry
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			writeJSON(w, http.StatusBadRequest, errResp(err))
			return
		}
		if err := validateSchedule(e); err != nil {
			writeJSON(w, http.StatusBadRequest, errResp(err))
			return
		}
		id, err := s.records.InsertSchedule(r.Context(), e)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errResp(err))
			return
		}
		e.ID = id
		writeJSON(w, http.StatusCreated, e)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// DELETE /schedules/{id}
func (s *Service) handleScheduleByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.records == nil {
		storeUnavailable(w)
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/schedules/"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResp(err))
		return
	}
	if err := s.records.DeleteSchedule(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// GET /schedules/next — the next applicable watering window.
func (s *Service) handleNextWindow(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		storeUnavailable(w)
		return
	}
	resp := map[string]any{}
	if err := s.sched.LastError(); err != nil {
		resp["warning"] = "schedule list may be stale: " + err.Error()
	}
	if win, ok := s.sched.Next(time.Now()); ok {
		resp["window"] = win
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /history/recent?limit=100
func (s *Service) handleRecentHistory(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		storeUnavailable(w)
		return
	}
	rows, err := s.records.RecentHistory(r.Context(), intParam(r, "limit", 100))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp(err))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// POST /api/relay {"command":"stop-all"} — the fallback command path. The
// publish rides a throwaway session that is closed after this one
// operation, never the manager's primary session.
func (s *Service) handleRelay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Command     string `json:"command"`
		DurationSec int    `json:"duration_sec"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp(err))
		return
	}
	cmd, err := model.ParseCommand(req.Command)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	word := cmd.WireWord()
	if err := mqttconn.PublishOnce(s.cfg.MQTT, s.cfg.CommandTopic, s.cfg.CommandQoS, word, 10*time.Second); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false, "topic": s.cfg.CommandTopic, "payload": word, "error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true, "topic": s.cfg.CommandTopic, "payload": word,
	})
}

func validateSchedule(e model.ScheduleEntry) error {
	if strings.TrimSpace(e.Name) == "" {
		return errString("schedule name required")
	}
	if e.Type != model.ScheduleRecurring && e.Type != model.ScheduleOneTime {
		return errString("schedule type must be recurring or one-time")
	}
	if _, err := time.Parse("15:04", e.TimeOfDay); err != nil {
		return errString("time_of_day must be HH:MM")
	}
	if e.Type == model.ScheduleOneTime {
		if _, err := time.Parse("2006-01-02", e.Date); err != nil {
			return errString("date must be YYYY-MM-DD for one-time schedules")
		}
	}
	if e.DurationMin <= 0 || e.DurationMin > 24*60 {
		return errString("duration_min out of range")
	}
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }

func storeUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]any{
		"error": "record store unavailable, feature disabled",
		"demo":  true,
	})
}

func intParam(r *http.Request, key string, def int) int {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func errResp(err error) map[string]any { return map[string]any{"error": err.Error()} }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
