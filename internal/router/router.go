package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/config"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/events"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/handlers"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/metrics"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/middleware"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/services"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

func NewRouter(svc *services.Services, bus *events.Bus, m *metrics.Metrics, cfg *config.Config, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Metrics(m))

	settings := handlers.NewSettingsHandler(svc.Settings, logger)
	projects := handlers.NewProjectHandler(svc.Projects, logger)
	indicators := handlers.NewIndicatorHandler(svc.Indicators, logger)
	records := handlers.NewRecordHandler(svc.Records, logger)
	files := handlers.NewFileHandler(svc.Files, cfg.MaxUploadSize, logger)
	ocr := handlers.NewOCRHandler(svc.OCR, logger)
	analysis := handlers.NewAnalysisHandler(svc.Analysis, logger)
	chat := handlers.NewChatHandler(svc.Chat, logger)
	trends := handlers.NewTrendHandler(svc.Trends, logger)
	system := handlers.NewSystemHandler(svc.System, logger)
	stream := handlers.NewEventHandler(bus, logger)

	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", system.Health).Methods(http.MethodGet)
	api.HandleFunc("/events", stream.Stream).Methods(http.MethodGet)

	// Settings
	api.HandleFunc("/settings/{key}", settings.Get).Methods(http.MethodGet)
	api.HandleFunc("/settings/{key}", settings.Save).Methods(http.MethodPut)

	// Catalog
	api.HandleFunc("/projects", projects.List).Methods(http.MethodGet)
	api.HandleFunc("/projects", projects.Create).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", projects.Update).Methods(http.MethodPatch)
	api.HandleFunc("/projects/{id}", projects.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/indicators", indicators.List).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/indicators", indicators.Create).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/indicators/ensure", indicators.Ensure).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/trends", trends.Project).Methods(http.MethodGet)
	api.HandleFunc("/trends", trends.All).Methods(http.MethodGet)
	api.HandleFunc("/indicators/{id}", indicators.Update).Methods(http.MethodPatch)
	api.HandleFunc("/indicators/{id}", indicators.Delete).Methods(http.MethodDelete)

	// Records and files
	api.HandleFunc("/records", records.List).Methods(http.MethodGet)
	api.HandleFunc("/records", records.Create).Methods(http.MethodPost)
	api.HandleFunc("/records/{id}", records.Get).Methods(http.MethodGet)
	api.HandleFunc("/records/{id}", records.Update).Methods(http.MethodPatch)
	api.HandleFunc("/records/{id}", records.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/records/{id}/files", files.Upload).Methods(http.MethodPost)
	api.HandleFunc("/records/{id}/files", files.List).Methods(http.MethodGet)
	api.HandleFunc("/files/{id}/content", files.Content).Methods(http.MethodGet)
	api.HandleFunc("/files/{id}", files.Delete).Methods(http.MethodDelete)

	// Extraction and analysis results
	api.HandleFunc("/records/{id}/ocr", ocr.Results).Methods(http.MethodGet)
	api.HandleFunc("/records/{id}/ocr", ocr.Cancel).Methods(http.MethodDelete)
	api.HandleFunc("/records/{id}/ocr/status", ocr.Status).Methods(http.MethodGet)
	api.HandleFunc("/ocr/{id}/items/{index}", ocr.UpdateItem).Methods(http.MethodPut)
	api.HandleFunc("/records/{id}/analysis", analysis.List).Methods(http.MethodGet)
	api.HandleFunc("/analyses", analysis.History).Methods(http.MethodGet)
	api.HandleFunc("/analyses/{id}", analysis.UpdateContent).Methods(http.MethodPut)
	api.HandleFunc("/chat", chat.History).Methods(http.MethodGet)
	api.HandleFunc("/chat", chat.Clear).Methods(http.MethodDelete)

	api.HandleFunc("/system/reset", system.Reset).Methods(http.MethodPost)

	// Endpoints that start model calls share one rate limit.
	limit := middleware.RateLimit(cfg.RateLimitRPS)
	api.Handle("/records/{id}/ocr", limit(http.HandlerFunc(ocr.Start))).Methods(http.MethodPost)
	api.Handle("/ocr/{id}/retry", limit(http.HandlerFunc(ocr.Retry))).Methods(http.MethodPost)
	api.Handle("/records/{id}/analysis", limit(http.HandlerFunc(analysis.Start))).Methods(http.MethodPost)
	api.Handle("/chat", limit(http.HandlerFunc(chat.Send))).Methods(http.MethodPost)

	// CORS wraps the router so preflight requests are answered before
	// method matching.
	return middleware.CORS()(r)
}
