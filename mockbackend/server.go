// Package mockbackend is an in-process stand-in for the map data backend. It serves the same
// endpoints as the real service plus the optional test control surface, so that the contract
// tests can run locally and be tested themselves.
package mockbackend

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mapdata/gateway-contract-tests/servicedef"
	"go.uber.org/zap"
)

const DefaultCrashDuration = time.Second * 2

// Control endpoint paths, relative to the server's base URL.
const (
	SeedGUIDPath   = "/api/TestHelpers/SeedGuid"
	ForceErrorPath = "/api/TestHelpers/ForceError"
	ClearErrorPath = "/api/TestHelpers/ClearError"
	CrashPath      = "/api/TestHelpers/Crash"
	HealthPath     = "/health"
)

// Options configures a Server. An empty BearerToken or APIKey means that credential is not
// checked.
type Options struct {
	BearerToken   string
	APIKey        string
	CrashDuration time.Duration
	Logger        *zap.Logger
}

// Server holds the backend state and its chi router.
type Server struct {
	store  *Store
	opts   Options
	logger *zap.Logger
	Router chi.Router

	lock        sync.Mutex
	forcedError bool
	downUntil   time.Time
	now         func() time.Time
}

func NewServer(store *Store, opts Options) *Server {
	if opts.CrashDuration <= 0 {
		opts.CrashDuration = DefaultCrashDuration
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: store, opts: opts, logger: logger, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.outage)

	r.Get(HealthPath, s.health)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/ValidateGuid", s.validateGUIDByPath)
		r.Get("/ValidateGuid/", s.validateGUIDByPath)
		r.Get("/ValidateGuid/{id}", s.validateGUIDByPath)
		r.Post("/ValidateGuid", s.validateGUIDByBody)

		r.Get("/MapDatas", s.listMapData)
		r.Get("/MapDatas/{postCode}", s.listMapDataByPostCode)

		r.Post(strings.TrimPrefix(SeedGUIDPath, "/api"), s.seedGUID)
		r.Post(strings.TrimPrefix(ForceErrorPath, "/api"), s.setForcedError(true))
		r.Post(strings.TrimPrefix(ClearErrorPath, "/api"), s.setForcedError(false))
		r.Post(strings.TrimPrefix(CrashPath, "/api"), s.crash)
	})

	s.Router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// outage answers every request with 503 while a simulated crash is in effect.
func (s *Server) outage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.isDown() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service unavailable"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.BearerToken != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.BearerToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid bearer token"})
			return
		}
		if s.opts.APIKey != "" && r.Header.Get("X-Api-Key") != s.opts.APIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing or invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isDown() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.now().Before(s.downUntil)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GET answers 200 false for an empty or malformed id.
func (s *Server) validateGUIDByPath(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeJSON(w, http.StatusOK, false)
		return
	}
	exists, err := s.store.Exists(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exists)
}

// POST answers with a {"value": bool} wrapper, and 400 for a malformed id.
func (s *Server) validateGUIDByBody(w http.ResponseWriter, r *http.Request) {
	var params servicedef.ValidateGUIDParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Request body must be a JSON object"})
		return
	}
	if _, err := uuid.Parse(params.ID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid GUID format"})
		return
	}
	exists, err := s.store.Exists(r.Context(), params.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"value": exists})
}

func (s *Server) listMapData(w http.ResponseWriter, r *http.Request) {
	if s.failing(w) {
		return
	}
	list, err := s.store.List(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) listMapDataByPostCode(w http.ResponseWriter, r *http.Request) {
	if s.failing(w) {
		return
	}
	list, err := s.store.ListByPostCode(r.Context(), chi.URLParam(r, "postCode"))
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) failing(w http.ResponseWriter) bool {
	s.lock.Lock()
	forced := s.forcedError
	s.lock.Unlock()
	if forced {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Unable to retrieve map data: upstream failure",
			"data":  []interface{}{},
		})
	}
	return forced
}

func (s *Server) seedGUID(w http.ResponseWriter, r *http.Request) {
	var params servicedef.ValidateGUIDParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Request body must be a JSON object"})
		return
	}
	if _, err := uuid.Parse(params.ID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid GUID format"})
		return
	}
	m := servicedef.MapData{
		ID: params.ID, PlotNo: "1A", Street: "Seed Street", Town: "Seed Town", PostCode: "0000", Village: "Seed Village",
	}
	if err := s.store.Insert(r.Context(), m); err != nil {
		s.internalError(w, err)
		return
	}
	s.logger.Info("seeded map data", zap.String("id", params.ID))
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) setForcedError(value bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		s.forcedError = value
		s.lock.Unlock()
		s.logger.Info("forced error mode changed", zap.Bool("enabled", value))
		w.WriteHeader(http.StatusNoContent)
	}
}

// crash takes the whole server down for the configured duration, after which it comes back on its
// own as if restarted by a supervisor. Forced error mode does not survive the restart.
func (s *Server) crash(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	s.downUntil = s.now().Add(s.opts.CrashDuration)
	s.forcedError = false
	s.lock.Unlock()
	s.logger.Warn("simulated crash", zap.Duration("downtime", s.opts.CrashDuration))
	w.WriteHeader(http.StatusAccepted)
}

// Restart ends a simulated crash immediately.
func (s *Server) Restart() {
	s.lock.Lock()
	s.downUntil = time.Time{}
	s.lock.Unlock()
	s.logger.Info("restarted")
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
