package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmhodges/clock"
	"gorm.io/gorm"

	"reminders/internal/auth"
	"reminders/internal/config"
	"reminders/internal/http/handler"
	mw "reminders/internal/http/middleware"
	"reminders/internal/jobs"
	"reminders/internal/recurrence"
	"reminders/internal/reminder"
	"reminders/internal/syncer"
	"reminders/internal/voice"
)

const Version = "1.0.0"

type Deps struct {
	DB          *gorm.DB
	Clock       clock.Clock
	Log         *slog.Logger
	JWT         *auth.JWT
	Parser      *voice.Parser
	Transcriber voice.Transcriber
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Parser == nil {
		d.Parser = voice.NewParser(nil, "", 0, d.Clock, d.Log)
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(d.Log))
	r.Use(chimw.Recoverer)
	if cfg.HTTP.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.HTTP.RequestTimeout))
	}

	if origins := cfg.Origins(); len(origins) > 0 {
		r.Use(mw.CORS(origins, cfg.HTTP.CORSAllowCredentials))
	}

	reminders := reminder.NewStore(d.DB, d.Clock)
	jobRepo := jobs.NewRepo(d.DB, d.Clock)
	exp := recurrence.NewExpander(d.DB, d.Clock, cfg.Recurrence.HorizonDays, cfg.Recurrence.MaxHorizonDays)
	recur := recurrence.NewService(d.DB, exp)

	health := &handler.HealthHandler{DB: d.DB, Clock: d.Clock, Version: Version}
	r.Get("/health", health.Health)

	ah := &handler.AuthHandler{JWT: d.JWT, Log: d.Log}
	if d.JWT != nil {
		r.With(auth.RequireStatic(cfg.Auth.APIToken)).Post("/auth/token", ah.Token)
	}

	rh := &handler.ReminderHandler{
		Reminders:  reminders,
		Recurrence: recur,
		Jobs:       jobRepo,
		Clock:      d.Clock,
		Log:        d.Log,
	}
	ph := &handler.PatternHandler{Service: recur, Log: d.Log}
	sh := &handler.SyncHandler{
		Reconciler: syncer.NewReconciler(d.DB, d.Clock, d.Log),
		Reminders:  reminders,
		Jobs:       jobRepo,
		Log:        d.Log,
	}
	vh := &handler.VoiceHandler{Parser: d.Parser, Transcriber: d.Transcriber, Log: d.Log}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.Auth.APIToken, d.JWT))

		r.Route("/reminders", func(r chi.Router) {
			r.Post("/", rh.Create)
			r.Get("/", rh.List)
			r.Get("/near-location", rh.Near)

			r.Get("/{id}", rh.Get)
			r.Patch("/{id}", rh.Patch)
			r.Delete("/{id}", rh.Delete)
		})

		r.Route("/recurrence-patterns", func(r chi.Router) {
			r.Post("/", ph.Create)
			r.Get("/{id}", ph.Get)
			r.Patch("/{id}", ph.Patch)
			r.Delete("/{id}", ph.Delete)
			r.Post("/{id}/expand", ph.Expand)
		})

		r.Post("/sync", sh.Sync)

		r.Post("/voice/parse", vh.Parse)
		r.Post("/voice/transcribe", vh.Transcribe)
	})

	return r
}
