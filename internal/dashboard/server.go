package dashboard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Porostik/dln-dashboard/internal/domain/model"
	"github.com/Porostik/dln-dashboard/internal/metrics"
	"github.com/Porostik/dln-dashboard/internal/store"
)

// Server exposes the read-side API over the aggregated stats. It reads only
// what has been durably aggregated and knows nothing about in-flight jobs.
type Server struct {
	stats  store.DayStatRepository
	logger *slog.Logger
}

func NewServer(stats store.DayStatRepository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{stats: stats, logger: logger.With("component", "dashboard")}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /dashboard/daily-volume", s.handleDailyVolume)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleDailyVolume(w http.ResponseWriter, r *http.Request) {
	from, err := parseDayParam(r.URL.Query().Get("from"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid from: %v", err))
		return
	}
	to, err := parseDayParam(r.URL.Query().Get("to"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid to: %v", err))
		return
	}

	stats, err := s.stats.GetDayVolumes(r.Context(), from, to)
	if err != nil {
		s.logger.Error("daily volume query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if stats == nil {
		stats = []model.DayStat{}
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
	metrics.DashboardRequests.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

// parseDayParam parses an optional YYYY-MM-DD query value as a UTC day.
func parseDayParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD")
	}
	return &day, nil
}
