package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/pocket-infra-api/api"
	"github.com/linesmerrill/pocket-infra-api/config"
	"github.com/linesmerrill/pocket-infra-api/databases"
	"github.com/linesmerrill/pocket-infra-api/services"
	"github.com/linesmerrill/pocket-infra-api/storage"
	"github.com/linesmerrill/pocket-infra-api/transcode"
)

// RequestTimeout bounds a whole request, image upload included
const RequestTimeout = 60 * time.Second

// App stores the router and the long lived clients, so they can be reused
type App struct {
	Router  *mux.Router
	Config  config.Config
	Reports *services.ReportService
	Feed    *FeedHub
	Guard   *api.AdminGuard
	Metrics *api.MetricsCollector

	dbClient databases.ClientHelper
	limiters []*api.RateLimiter
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.Guard == nil {
		a.Guard = api.NewAdminGuard(&a.Config)
	}
	if a.Metrics == nil {
		a.Metrics = api.GetMetrics()
	}
	if a.Feed == nil {
		a.Feed = NewFeedHub(a.Config.AllowedOrigins)
	}

	general := api.NewRateLimiter(api.GeneralLimit)
	strict := api.NewRateLimiter(api.SubmitLimit)
	a.limiters = []*api.RateLimiter{general, strict}

	re := Report{Service: a.Reports}
	h := Health{Service: a.Reports, Config: &a.Config}
	m := MetricsHandler{Collector: a.Metrics}

	r := mux.NewRouter()
	r.NotFoundHandler = api.NotFoundHandler()

	// every route is reachable at the root and under /api
	for _, sr := range []*mux.Router{r.PathPrefix("/api").Subrouter(), r} {
		sr.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
		sr.HandleFunc("/client-config", h.ClientConfigHandler).Methods("GET")
		sr.Handle("/ws/reports", http.HandlerFunc(a.Feed.HandleFeedWebSocket)).Methods("GET")

		sr.Handle("/reports", general.Middleware(http.HandlerFunc(re.ListReportsHandler))).Methods("GET")
		sr.Handle("/reports", strict.Middleware(http.HandlerFunc(re.CreateReportHandler))).Methods("POST")
		sr.Handle("/reports/{report_id}", general.Middleware(http.HandlerFunc(re.ReportByIDHandler))).Methods("GET")
		sr.Handle("/reports/{report_id}", a.Guard.Middleware(http.HandlerFunc(re.UpdateReportHandler))).Methods("PATCH")
		sr.Handle("/reports/{report_id}/upvote", strict.Middleware(http.HandlerFunc(re.UpvoteReportHandler))).Methods("POST")
		sr.Handle("/stats", general.Middleware(http.HandlerFunc(re.StatsHandler))).Methods("GET")

		sr.Handle("/admin/token", strict.Middleware(http.HandlerFunc(a.Guard.CreateToken))).Methods("POST")
		sr.Handle("/admin/reports", a.Guard.Middleware(http.HandlerFunc(re.AdminReportsHandler))).Methods("GET")
		sr.Handle("/admin/metrics", a.Guard.Middleware(http.HandlerFunc(m.MetricsDashboardHandler))).Methods("GET")
	}
	return r
}

// Handler wraps the router with the cross cutting middleware, outermost first:
// client ip resolution, panic recovery, CORS, request metrics and the request timeout.
func (a *App) Handler() http.Handler {
	var h http.Handler = a.Router
	h = api.TimeoutMiddleware(RequestTimeout)(h)
	h = api.MetricsMiddleware(a.Metrics)(h)
	h = api.CORS(a.Config.AllowedOrigins)(h)
	h = api.RecoveryMiddleware(h)
	return api.RealIP(a.Config.TrustedProxyHops)(h)
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize(ctx context.Context) error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().Errorw("failed to create new client", "error", err)
		return err
	}

	connectCtx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()
	if err = client.Connect(connectCtx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().Errorw("failed to connect to database", "error", err)
		return err
	}
	a.dbClient = client
	zap.S().Info("pocket-infra-api has connected to the database")

	var store storage.ObjectStore
	cld, err := storage.NewCloudinary(a.Config.CloudinaryURL)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		zap.S().Warn("CLOUDINARY_URL not set, report images will be dropped")
	case err != nil:
		return err
	default:
		store = cld
	}

	a.Feed = NewFeedHub(a.Config.AllowedOrigins)
	a.Reports = services.NewReportService(
		databases.NewReportDatabase(databases.NewDatabase(&a.Config, client)),
		store,
		transcode.New(),
		a.Feed,
	)

	// initialize api router
	a.initializeRoutes()
	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// StartJanitors evicts idle rate limiter buckets until ctx is done
func (a *App) StartJanitors(ctx context.Context) {
	for _, l := range a.limiters {
		go l.Cleanup(ctx, time.Minute)
	}
}

// Close drops live feed subscribers and disconnects from the database
func (a *App) Close(ctx context.Context) error {
	if a.Feed != nil {
		a.Feed.Close()
	}
	if a.dbClient != nil {
		return a.dbClient.Disconnect(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
