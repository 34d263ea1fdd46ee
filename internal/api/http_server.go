package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/logging"
	"barberbook/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the JSON API alongside the gRPC service.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    *Services
	server *http.Server
	auth   *HTTPAuth
	log    zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc *Services, limiter *RateLimiter, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:  cfg,
		svc:  svc,
		auth: NewHTTPAuth(cfg, limiter),
		log:  logging.Component(logger, "http"),
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet).Name("healthz")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.auth.Middleware)

	api.HandleFunc("/barbers/{id:[0-9]+}/schedule", s.getBarberSchedule).Methods(http.MethodGet).Name("getBarberSchedule")
	api.HandleFunc("/barbers/{id:[0-9]+}/slots/{slot_start}/toggle", s.toggleSlotAvailability).Methods(http.MethodPut).Name("toggleSlotAvailability")
	api.HandleFunc("/barbers/{id:[0-9]+}/bookings", s.listBarberBookings).Methods(http.MethodGet).Name("listBarberBookings")
	api.HandleFunc("/barbers/{id:[0-9]+}/stats", s.getBarberStats).Methods(http.MethodGet).Name("getBarberStats")
	api.HandleFunc("/barbers/{id:[0-9]+}/earnings", s.listEarnings).Methods(http.MethodGet).Name("listEarnings")
	api.HandleFunc("/barbers/{id:[0-9]+}/earnings.xlsx", s.exportEarnings).Methods(http.MethodGet).Name("exportEarnings")

	api.HandleFunc("/bookings", s.requestBooking).Methods(http.MethodPost).Name("requestBooking")
	api.HandleFunc("/bookings/{id:[0-9]+}", s.getBooking).Methods(http.MethodGet).Name("getBooking")
	api.HandleFunc("/bookings/{id:[0-9]+}/actions", s.manageBooking).Methods(http.MethodPost).Name("manageBooking")
	api.HandleFunc("/customers/me/bookings", s.listCustomerBookings).Methods(http.MethodGet).Name("listCustomerBookings")

	api.HandleFunc("/users", s.createUser).Methods(http.MethodPost).Name("createUser")
	api.HandleFunc("/users/{id:[0-9]+}", s.getUser).Methods(http.MethodGet).Name("getUser")
	api.HandleFunc("/onboarding", s.completeOnboarding).Methods(http.MethodPost).Name("completeOnboarding")
	api.HandleFunc("/shops/nearby", s.listNearbyShops).Methods(http.MethodGet).Name("listNearbyShops")
	api.HandleFunc("/shops/{id:[0-9]+}", s.getShop).Methods(http.MethodGet).Name("getShop")
	api.HandleFunc("/shops/{id:[0-9]+}/open", s.setShopOpen).Methods(http.MethodPut).Name("setShopOpen")
	api.HandleFunc("/shops/{id:[0-9]+}/services", s.listServices).Methods(http.MethodGet).Name("listServices")
	api.HandleFunc("/shops/{id:[0-9]+}/services", s.addService).Methods(http.MethodPost).Name("addService")
	api.HandleFunc("/services/{id:[0-9]+}", s.updateService).Methods(http.MethodPatch).Name("updateService")
	api.HandleFunc("/services/{id:[0-9]+}", s.deactivateService).Methods(http.MethodDelete).Name("deactivateService")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found", Code: "not_found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Code: "method_not_allowed"})
	})
	return r
}

// Handler exposes the routed handler for embedding and tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HTTPAuth provides API-key auth, per-key rate limiting and actor extraction
// for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	clients map[string]config.APIClientKey
	limiter *RateLimiter
}

func NewHTTPAuth(cfg config.APIConfig, limiter *RateLimiter) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m, limiter: limiter}
}

// Middleware runs after routing so permissions can be looked up by route name.
func (a *HTTPAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				code := "unauthenticated"
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
					code = "permission_denied"
				}
				writeJSON(w, statusCode, errorBody{Error: err.Error(), Code: code})
				return
			}
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Code: "rate_limited"})
			return
		}

		if id, ok := parseActor(r.Header.Get(headerName(a.cfg.Auth.HeaderUser, userHeaderDefault))); ok {
			r = r.WithContext(contextWithActor(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

var errPermissionDenied = errors.New("permission denied")

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(headerName(a.cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault)))
	extra := strings.TrimSpace(r.Header.Get(headerName(a.cfg.Auth.HeaderExtra, apiExtraHeaderDefault)))
	if apiKey == "" || extra == "" {
		return fmt.Errorf("missing api key headers")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return fmt.Errorf("invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return fmt.Errorf("invalid extra header")
	}

	if !hasPermission(client, requiredPermissionHTTP(routeName(r))) {
		return errPermissionDenied
	}
	return nil
}

var routePermissions = map[string]string{
	"getBarberSchedule":      permReadSchedule,
	"getBooking":             permReadBookings,
	"listCustomerBookings":   permReadBookings,
	"listBarberBookings":     permReadBookings,
	"requestBooking":         permWriteBookings,
	"manageBooking":          permWriteBookings,
	"toggleSlotAvailability": permWriteBookings,
	"getBarberStats":         permReadStats,
	"listEarnings":           permReadStats,
	"exportEarnings":         permReadStats,
	"createUser":             permManageCatalog,
	"completeOnboarding":     permManageCatalog,
	"setShopOpen":            permManageCatalog,
	"addService":             permManageCatalog,
	"updateService":          permManageCatalog,
	"deactivateService":      permManageCatalog,
}

func requiredPermissionHTTP(route string) string {
	return routePermissions[route]
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
	}
	return "unmatched"
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(headerName(a.cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault))); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDMetadataKey))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDMetadataKey, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeName(r)
		metrics.IncHTTP(route, recorder.status)
		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps a service error to its status and body. Internal errors
// are logged with the request route and answered generically.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, statusCode, _, message := classify(err)
	if code == "internal" {
		s.log.Error().Err(err).Str("route", routeName(r)).Msg("request failed")
	}
	writeJSON(w, statusCode, errorBody{Error: message, Code: code})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
