package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/swachhsnap-api/api"
	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/databases"
	"github.com/linesmerrill/swachhsnap-api/geo"
	"github.com/linesmerrill/swachhsnap-api/media"
	"github.com/linesmerrill/swachhsnap-api/models"
	"github.com/linesmerrill/swachhsnap-api/realtime"
	"github.com/linesmerrill/swachhsnap-api/session"
)

// App stores the router and every collaborator the handlers share
type App struct {
	Router *mux.Router
	Config config.Config
	DB     databases.DatabaseHelper

	Uploader   media.Uploader
	Notifier   realtime.Notifier
	Provider   *session.Provider
	Registry   *session.Registry
	Auth       *api.Auth
	Metrics    *api.Metrics
	Classifier *geo.Classifier

	client databases.ClientHelper
	redis  *realtime.RedisNotifier
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	uDB := databases.NewUserDatabase(a.DB)
	cDB := databases.NewComplaintDatabase(a.DB)
	eDB := databases.NewEventDatabase(a.DB)

	u := User{DB: uDB, Provider: a.Provider, Auth: a.Auth, Notifier: a.Notifier}
	c := Complaint{
		DB:         cDB,
		UDB:        uDB,
		Uploader:   a.Uploader,
		Notifier:   a.Notifier,
		Classifier: a.Classifier,
		Metrics:    a.Metrics,
		MaxBytes:   a.Config.Media.MaxBytes,
	}
	e := Event{DB: eDB, Notifier: a.Notifier}
	d := Dashboard{Complaints: cDB, Events: eDB, Users: uDB}
	s := Stream{Dashboard: d, Auth: a.Auth, Registry: a.Registry, Notifier: a.Notifier, Metrics: a.Metrics}
	m := Media{}
	if signer, ok := a.Uploader.(uploadSigner); ok {
		m.Signer = signer
	}

	r := mux.NewRouter()
	r.Use(a.Metrics.MetricsMiddleware)

	// healthchex
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	r.Handle("/metrics", a.Metrics.Handler()).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(a.Config.RequestTimeout))

	protected := func(h http.HandlerFunc, roles ...models.Role) http.Handler {
		var next http.Handler = h
		if len(roles) > 0 {
			next = api.RequireRole(roles...)(next)
		}
		return a.Auth.Middleware(next)
	}

	apiCreate.HandleFunc("/health", healthCheckHandler).Methods("GET")

	apiCreate.Handle("/auth/register", http.HandlerFunc(u.RegisterHandler)).Methods("POST")
	apiCreate.Handle("/auth/token", http.HandlerFunc(a.Auth.CreateToken)).Methods("POST")
	apiCreate.Handle("/auth/logout", protected(a.Auth.RevokeToken)).Methods("DELETE")
	apiCreate.Handle("/auth/me", protected(u.MeHandler)).Methods("GET")

	apiCreate.Handle("/sweepers", protected(u.SweepersHandler, models.RoleAdmin)).Methods("GET")

	apiCreate.Handle("/complaints", protected(c.CreateComplaintHandler, models.RoleCitizen)).Methods("POST")
	apiCreate.Handle("/complaints", protected(c.ComplaintsHandler)).Methods("GET")
	apiCreate.Handle("/complaints/{complaint_id}", protected(c.ComplaintByIDHandler)).Methods("GET")
	apiCreate.Handle("/complaints/{complaint_id}/assign", protected(c.AssignComplaintHandler, models.RoleAdmin)).Methods("PUT")
	apiCreate.Handle("/complaints/{complaint_id}/proof", protected(c.SubmitProofHandler, models.RoleSweeper)).Methods("POST")
	apiCreate.Handle("/complaints/{complaint_id}/approve", protected(c.ApproveComplaintHandler, models.RoleAdmin)).Methods("PUT")
	apiCreate.Handle("/complaints/{complaint_id}/feedback", protected(c.FeedbackHandler, models.RoleCitizen)).Methods("PUT")

	apiCreate.Handle("/dashboard", protected(d.DashboardHandler)).Methods("GET")

	apiCreate.Handle("/events", protected(e.CreateEventHandler, models.RoleAdmin)).Methods("POST")
	apiCreate.Handle("/events", protected(e.EventsHandler)).Methods("GET")
	apiCreate.Handle("/events/{event_id}/participants", protected(e.ToggleParticipantHandler, models.RoleCitizen)).Methods("PUT")

	apiCreate.Handle("/media/signature", protected(m.SignatureHandler)).Methods("POST")

	// browsers cannot set headers on a websocket handshake, the token rides in the query
	apiCreate.HandleFunc("/ws/dashboard", s.DashboardStreamHandler).Methods("GET")

	return r
}

// Initialize connects the database and builds every collaborator. The
// background loops it starts stop when ctx is done.
func (a *App) Initialize(ctx context.Context) error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}
	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.client = client
	a.DB = databases.NewDatabase(&a.Config, client)
	zap.S().Info("swachhsnap-api has connected to the database")

	if err := databases.NewUserDatabase(a.DB).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure user indexes: %w", err)
	}

	up, err := media.New(&a.Config)
	if err != nil {
		return fmt.Errorf("failed to set up media uploads: %w", err)
	}
	if m, ok := up.(*media.MinioUploader); ok {
		if err := m.EnsureBucket(ctx); err != nil {
			return err
		}
	}
	a.Uploader = up

	if a.Config.RedisURL != "" {
		rn, err := realtime.NewRedisNotifier(ctx, a.Config.RedisURL)
		if err != nil {
			return err
		}
		a.redis = rn
		a.Notifier = rn
		go rn.Run(ctx)
	} else {
		a.Notifier = realtime.NewLocalNotifier()
	}

	zones := geo.DefaultZones
	if a.Config.SensitiveZones != "" {
		if zones, err = geo.ParseZones(a.Config.SensitiveZones); err != nil {
			return err
		}
	}
	a.Classifier = geo.NewClassifier(zones)
	for _, z := range a.Classifier.Zones() {
		zap.S().Infow("sensitive zone", "name", z.Name, "latitude", z.Latitude, "longitude", z.Longitude)
	}

	a.Provider, err = session.NewProvider(databases.NewUserDatabase(a.DB), a.Config.JWTSecret, a.Config.TokenTTL)
	if err != nil {
		return err
	}
	a.Registry = session.NewRegistry()
	changes, stop := a.Provider.Changes()
	go func() {
		defer stop()
		a.Registry.Run(ctx, changes)
	}()

	a.Auth = api.NewAuth(ctx, a.Provider, a.Registry, a.Config.TokenTTL)
	a.Metrics = api.NewMetrics("swachhsnap")
	a.Metrics.ObserveSessions(a.Registry.Active)

	// initialize api router
	a.initializeRoutes()
	return nil
}

// Close releases the database and redis connections
func (a *App) Close(ctx context.Context) error {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			zap.S().Warnw("failed to close redis", "error", err)
		}
	}
	if a.client != nil {
		return a.client.Disconnect(ctx)
	}
	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
