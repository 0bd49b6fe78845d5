package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avantgarde-labs/riskmon/internal/alerting"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/scoring"
	"github.com/avantgarde-labs/riskmon/internal/state"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the JSON API: asset registry, latest metrics, active
// alerts and on-demand risk scores.
type WebServer struct {
	router *mux.Router
	port   string
	alerts *alerting.Engine
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, alerts *alerting.Engine) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		alerts: alerts,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/assets", ws.handleListAssets).Methods("GET")
	api.HandleFunc("/assets", ws.handleUpsertAsset).Methods("POST")
	api.HandleFunc("/assets/{symbol}", ws.handleGetAsset).Methods("GET")
	api.HandleFunc("/assets/{symbol}/disable", ws.handleDisableAsset).Methods("POST")
	api.HandleFunc("/assets/{symbol}/metrics", ws.handleLatestMetrics).Methods("GET")
	api.HandleFunc("/assets/{symbol}/score", ws.handleScoreAsset).Methods("GET")
	api.HandleFunc("/alerts/active", ws.handleActiveAlerts).Methods("GET")
	api.HandleFunc("/thresholds/reload", ws.handleReloadThresholds).Methods("POST")

	ws.router.Use(ws.loggingMiddleware)
	ws.router.Use(ws.corsMiddleware)
}

// Start begins serving HTTP requests
func (ws *WebServer) Start() error {
	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	webLogger.Info().Str("port", ws.port).Msg("Web server starting")
	return server.ListenAndServe()
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"goroutines": runtime.NumGoroutine(),
	}
	if err := state.TestDBConnection(); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		ws.writeJSONResponse(w, http.StatusServiceUnavailable, status)
		return
	}
	status["database"] = "connected"
	ws.writeJSONResponse(w, http.StatusOK, status)
}

func (ws *WebServer) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := state.ListAllAssets()
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "failed to list assets")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, assets)
}

// handleUpsertAsset registers or replaces an asset. The config document may
// arrive in the legacy dict form; it is normalized before validation.
func (ws *WebServer) handleUpsertAsset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Symbol     string          `json:"symbol"`
		Name       string          `json:"name"`
		Type       types.AssetType `json:"type"`
		Underlying string          `json:"underlying"`
		Decimals   int             `json:"decimals"`
		Enabled    *bool           `json:"enabled"`
		Config     json.RawMessage `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Symbol == "" || len(payload.Config) == 0 {
		ws.writeErrorResponse(w, http.StatusBadRequest, "symbol and config are required")
		return
	}

	asset := types.Asset{
		Symbol:     payload.Symbol,
		Name:       payload.Name,
		Type:       payload.Type,
		Underlying: payload.Underlying,
		Decimals:   payload.Decimals,
		Enabled:    payload.Enabled == nil || *payload.Enabled,
	}
	if asset.Type == "" {
		asset.Type = types.AssetOther
	}

	if err := state.UpsertAssetFromDocument(asset, payload.Config); err != nil {
		var cie *types.ConfigInvalidError
		if errors.As(err, &cie) {
			ws.writeJSONResponse(w, http.StatusUnprocessableEntity, map[string]string{
				"error":  "config invalid",
				"path":   cie.Path,
				"reason": cie.Reason,
			})
			return
		}
		webLogger.Error().Err(err).Str("symbol", payload.Symbol).Msg("Asset upsert failed")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "asset upsert failed")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "registered", "symbol": payload.Symbol})
}

func (ws *WebServer) handleDisableAsset(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	found, err := state.DisableAsset(symbol)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "failed to disable asset")
		return
	}
	if !found {
		ws.writeErrorResponse(w, http.StatusNotFound, "asset not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "disabled", "symbol": symbol})
}

func (ws *WebServer) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	asset, err := state.GetAsset(symbol)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "failed to load asset")
		return
	}
	if asset == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "asset not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, asset)
}

func (ws *WebServer) handleLatestMetrics(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	latest, err := state.LatestAll(symbol)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "failed to load metrics")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, latest)
}

// handleScoreAsset runs the scoring pipeline at an optional cutoff
// (?cutoff=RFC3339, default now).
func (ws *WebServer) handleScoreAsset(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	asset, err := state.GetAsset(symbol)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "failed to load asset")
		return
	}
	if asset == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "asset not found")
		return
	}

	cutoff := time.Now().UTC()
	if raw := r.URL.Query().Get("cutoff"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "invalid cutoff timestamp")
			return
		}
		cutoff = parsed.UTC()
	}

	result, err := scoring.ScoreAsset(*asset, cutoff)
	if err != nil {
		webLogger.Error().Err(err).Str("symbol", symbol).Msg("Scoring failed")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "scoring failed")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, result)
}

func (ws *WebServer) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	severity := types.Severity(r.URL.Query().Get("severity"))
	alerts, err := state.ActiveAlerts(severity)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "failed to load alerts")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, alerts)
}

// handleReloadThresholds is the explicit reload signal for the threshold
// catalog.
func (ws *WebServer) handleReloadThresholds(w http.ResponseWriter, r *http.Request) {
	if err := ws.alerts.ReloadThresholds(); err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "threshold reload failed")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	ws.writeJSONResponse(w, statusCode, map[string]string{"error": message})
}

func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("took", time.Since(start).String()).
			Msg("Request handled")
	})
}
