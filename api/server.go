/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. CORS:       Cross-origin requests for the frontend
  3. httplog:    Structured request logging (ECS schema) via slog
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Heartbeat:  GET /health liveness probe

ROUTE GROUPS:
  /api/units, /api/locations, /api/sectors, /api/employees   Hierarchy CRUD
  /api/events/*          Leave and adjustment events, mass creation, CSV import
  /api/calculations/*    Advance, finalize, summaries, exports, paystubs
  /api/reports/*         Annual report and cost evolution
  /api/holidays, /api/calendar/*   Holiday calendar and working-day suggestion
  /api/backup            Whole-state JSON backup
  /api/scenarios/*       Demo scenarios
  /api/reset             Database reset (dev only)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"io"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// NewLogger builds the application logger. JSON output uses the ECS field
// names so request logs and application logs share one schema.
func NewLogger(w io.Writer, level slog.Level, jsonOutput bool) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logFormat := httplog.SchemaECS.Concise(false)
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: logFormat.ReplaceAttr}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("app", "benefits-engine"))
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(httplog.RequestLogger(h.Logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Route("/api", func(r chi.Router) {
		r.Route("/units", func(r chi.Router) {
			r.Get("/", h.ListUnits)
			r.Post("/", h.SaveUnit)
			r.Get("/{id}", h.GetUnit)
			r.Put("/{id}", h.SaveUnit)
			r.Delete("/{id}", h.DeleteUnit)
		})

		r.Route("/locations", func(r chi.Router) {
			r.Get("/", h.ListLocations)
			r.Post("/", h.SaveLocation)
			r.Get("/{id}", h.GetLocation)
			r.Put("/{id}", h.SaveLocation)
			r.Delete("/{id}", h.DeleteLocation)
		})

		r.Route("/sectors", func(r chi.Router) {
			r.Get("/", h.ListSectors)
			r.Post("/", h.SaveSector)
			r.Get("/{id}", h.GetSector)
			r.Put("/{id}", h.SaveSector)
			r.Delete("/{id}", h.DeleteSector)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.SaveEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Put("/{id}", h.SaveEmployee)
			r.Delete("/{id}", h.DeleteEmployee)
			r.Get("/{id}/rates", h.GetEmployeeRates)
			r.Get("/{id}/events", h.ListEmployeeEvents)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.CreateEvent)
			r.Post("/mass", h.CreateMassEvents)
			r.Post("/import", h.ImportEvents)
			r.Put("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.DeleteEvent)
		})

		r.Route("/calculations/{month}", func(r chi.Router) {
			r.Get("/", h.ListCalculations)
			r.Post("/advance", h.RunAdvance)
			r.Post("/finalize", h.RunFinalize)
			r.Get("/summary", h.GetMonthSummary)
			r.Get("/export/vavt.csv", h.ExportVAVT)
			r.Get("/export/reimbursements.csv", h.ExportReimbursements)
			r.Get("/{employeeID}/paystub.pdf", h.GetPaystub)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/annual/{year}", h.GetAnnualReport)
			r.Get("/evolution/{month}", h.GetCostEvolution)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})
		r.Get("/calendar/{month}/working-days", h.SuggestWorkingDays)

		r.Get("/backup", h.ExportBackup)
		r.Post("/backup", h.ImportBackup)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
		r.Post("/reset", h.ResetDatabase)
	})

	return r
}
