package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cvewatch/internal/domain"
	"cvewatch/internal/ports"
	"cvewatch/internal/usecase"
)

const (
	defaultSummaryLimit  = 7
	defaultRecordLimit   = 20
	defaultDeliveryLimit = 20
)

// Server exposes the pipeline and query operations as a thin JSON API.
// All aggregation logic lives in the use cases; handlers translate status
// codes and never leak internal error detail to callers.
type Server struct {
	pipeline    *usecase.Pipeline
	timeline    *usecase.TimelineBuilder
	subscribers *usecase.SubscriberService
	notifier    *usecase.Notifier
	records     ports.RecordStore
	summaries   ports.SummaryStore
	status      ports.StatusStore
	logger      *slog.Logger
}

// Deps wires the use cases and query stores into the server.
type Deps struct {
	Pipeline    *usecase.Pipeline
	Timeline    *usecase.TimelineBuilder
	Subscribers *usecase.SubscriberService
	Notifier    *usecase.Notifier
	Records     ports.RecordStore
	Summaries   ports.SummaryStore
	Status      ports.StatusStore
	Logger      *slog.Logger
}

// NewServer constructs the API surface.
func NewServer(deps Deps) *Server {
	return &Server{
		pipeline:    deps.Pipeline,
		timeline:    deps.Timeline,
		subscribers: deps.Subscribers,
		notifier:    deps.Notifier,
		records:     deps.Records,
		summaries:   deps.Summaries,
		status:      deps.Status,
		logger:      deps.Logger,
	}
}

// Routes registers all handlers on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/", s.handleRoot)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/summaries", s.handleSummaries)
	mux.HandleFunc("GET /api/summaries/latest", s.handleLatestSummary)
	mux.HandleFunc("GET /api/cves/recent", s.handleRecentRecords)
	mux.HandleFunc("GET /api/cves/by-severity/{severity}", s.handleRecordsBySeverity)
	mux.HandleFunc("POST /api/scrape/manual", s.handleManualRun)
	mux.HandleFunc("GET /api/timeline", s.handleTimeline)
	mux.HandleFunc("POST /api/timeline/generate", s.handleTimelineGenerate)
	mux.HandleFunc("GET /api/timeline/stats", s.handleTimelineStats)
	mux.HandleFunc("POST /api/subscribe", s.handleSubscribe)
	mux.HandleFunc("POST /api/unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("GET /api/subscribers", s.handleSubscribers)
	mux.HandleFunc("POST /api/notifications/test", s.handleTestNotification)
	mux.HandleFunc("GET /api/notifications/log", s.handleDeliveryLog)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "CVE Agent API - Monitoring latest vulnerabilities",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.status.Status(r.Context())
	if errors.Is(err, ports.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  string(domain.RunNotStarted),
			"message": "No runs yet",
		})
		return
	}
	if err != nil {
		s.fail(w, "query status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", defaultSummaryLimit)
	summaries, err := s.summaries.Summaries(r.Context(), limit)
	if err != nil {
		s.fail(w, "query summaries", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyWhenNil(summaries))
}

func (s *Server) handleLatestSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.summaries.LatestSummary(r.Context())
	if errors.Is(err, ports.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No summaries available yet"})
		return
	}
	if err != nil {
		s.fail(w, "query latest summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRecentRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.RecentRecords(r.Context(), intQuery(r, "limit", defaultRecordLimit))
	if err != nil {
		s.fail(w, "query recent records", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyWhenNil(records))
}

func (s *Server) handleRecordsBySeverity(w http.ResponseWriter, r *http.Request) {
	severity, err := domain.ParseSeverity(r.PathValue("severity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown severity")
		return
	}

	records, err := s.records.RecordsBySeverity(r.Context(), severity, intQuery(r, "limit", defaultRecordLimit))
	if err != nil {
		s.fail(w, "query records by severity", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyWhenNil(records))
}

func (s *Server) handleManualRun(w http.ResponseWriter, r *http.Request) {
	err := s.pipeline.Run(r.Context(), time.Now().UTC())
	if errors.Is(err, usecase.ErrRunInProgress) {
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	if err != nil {
		s.fail(w, "manual run", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Manual scraping completed successfully"})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	day, err := dateQuery(r, "date", time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	entry, err := s.timeline.Entry(r.Context(), day)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no timeline entry for that day")
		return
	}
	if err != nil {
		s.fail(w, "query timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleTimelineGenerate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date         string `json:"date"`
		BackfillDays int    `json:"backfill_days"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	if body.BackfillDays > 0 {
		entries, err := s.timeline.Backfill(r.Context(), body.BackfillDays)
		if err != nil {
			s.fail(w, "backfill timeline", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"generated": len(entries)})
		return
	}

	day := time.Now().UTC()
	if body.Date != "" {
		parsed, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	entry, err := s.timeline.Build(r.Context(), day)
	if errors.Is(err, usecase.ErrNoTimelineData) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No high-severity records for that day"})
		return
	}
	if err != nil {
		s.fail(w, "build timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleTimelineStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.timeline.Stats(r.Context())
	if err != nil {
		s.fail(w, "timeline stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	subscriber, err := s.subscribers.Subscribe(r.Context(), body.Email)
	switch {
	case errors.Is(err, usecase.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid email address")
	case errors.Is(err, usecase.ErrAlreadySubscribed):
		writeError(w, http.StatusConflict, "address is already subscribed")
	case err != nil:
		s.fail(w, "subscribe", err)
	default:
		writeJSON(w, http.StatusCreated, subscriber)
	}
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.subscribers.Unsubscribe(r.Context(), body.Email)
	switch {
	case errors.Is(err, usecase.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid email address")
	case errors.Is(err, usecase.ErrSubscriberNotFound):
		writeError(w, http.StatusNotFound, "subscriber not found")
	case err != nil:
		s.fail(w, "unsubscribe", err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Unsubscribed"})
	}
}

func (s *Server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	subscribers, err := s.subscribers.List(r.Context())
	if err != nil {
		s.fail(w, "list subscribers", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyWhenNil(subscribers))
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.notifier.SendTest(r.Context(), body.Email)
	switch {
	case errors.Is(err, usecase.ErrMailNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "mail transport is not configured")
	case err != nil:
		s.fail(w, "test notification", err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Test notification sent"})
	}
}

func (s *Server) handleDeliveryLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.notifier.Deliveries(r.Context(), intQuery(r, "limit", defaultDeliveryLimit))
	if err != nil {
		s.fail(w, "query delivery log", err)
		return
	}
	writeJSON(w, http.StatusOK, emptyWhenNil(entries))
}

// fail logs the detail server-side and answers with a generic message.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	if s.logger != nil {
		s.logger.Error(op, "error", err)
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func intQuery(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func dateQuery(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", value)
}

func emptyWhenNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
