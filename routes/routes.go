package routes

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	followController "github.com/m-barthelemy/placeshare/controllers/follow"
	notificationsController "github.com/m-barthelemy/placeshare/controllers/notifications"
	placesController "github.com/m-barthelemy/placeshare/controllers/places"
	pushController "github.com/m-barthelemy/placeshare/controllers/push"
	"github.com/m-barthelemy/placeshare/controllers/sse"
	userController "github.com/m-barthelemy/placeshare/controllers/user"
	"github.com/m-barthelemy/placeshare/metrics"
	"github.com/m-barthelemy/placeshare/models"
	"github.com/m-barthelemy/placeshare/services"
	"github.com/m-barthelemy/placeshare/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Managers are the services the HTTP API exposes.
type Managers struct {
	Users         *services.UserManager
	Places        *services.PlaceManager
	Follows       *services.FollowManager
	Notifications *services.NotificationsManager
	Push          *services.PushManager
}

// ssePingInterval keeps idle event streams open through proxies.
const ssePingInterval = 28 * time.Second

// New builds the HTTP API. Background tasks stop when ctx is done.
func New(ctx context.Context, config *models.Config, managers Managers) http.Handler {
	sessions := NewSessionHandler(config)
	requireSession := func(h http.HandlerFunc) http.HandlerFunc { return sessions.SessionMiddleware(h, false) }
	optionalSession := func(h http.HandlerFunc) http.HandlerFunc { return sessions.SessionMiddleware(h, true) }

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.MessageResponse(w, "Could not find this route.", http.StatusNotFound)
	})

	api := router.PathPrefix("/api").Subrouter()
	handle := func(path string, h http.Handler, methods ...string) {
		observer := metrics.APIRequestDuration.MustCurryWith(prometheus.Labels{"route": "/api" + path})
		api.Handle(path, promhttp.InstrumentHandlerDuration(observer, h)).Methods(methods...)
	}

	clientIP := utils.New(config)
	authLimiter := httprate.Limit(
		config.AuthRateLimit,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return clientIP.GetClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			utils.MessageResponse(w, "Too many requests, please try again later.", http.StatusTooManyRequests)
		}),
	)

	userC := userController.New(config, managers.Users)
	handle("/users", optionalSession(userC.GetUsers), http.MethodGet)
	handle("/users/signup", authLimiter(http.HandlerFunc(userC.Signup)), http.MethodPost)
	handle("/users/login", authLimiter(http.HandlerFunc(userC.Login)), http.MethodPost)

	placesC := placesController.New(config, managers.Places)
	handle("/places/user/{uid}", http.HandlerFunc(placesC.GetPlacesByUser), http.MethodGet)
	handle("/places/{pid}", http.HandlerFunc(placesC.GetPlace), http.MethodGet)
	handle("/places", requireSession(placesC.CreatePlace), http.MethodPost)
	handle("/places/{pid}", requireSession(placesC.UpdatePlace), http.MethodPatch)
	handle("/places/{pid}", requireSession(placesC.DeletePlace), http.MethodDelete)

	followC := followController.New(config, managers.Follows)
	handle("/follow/request", requireSession(followC.RequestFollow), http.MethodPost)
	handle("/follow/requests", requireSession(followC.GetFollowRequests), http.MethodGet)
	handle("/follow/accept", requireSession(followC.AcceptFollow), http.MethodPost)
	handle("/follow/reject", requireSession(followC.RejectFollow), http.MethodPost)

	notificationsC := notificationsController.New(managers.Notifications)
	handle("/notifications", requireSession(notificationsC.GetNotifications), http.MethodGet)

	sseC := sse.New(config)
	managers.Notifications.OnCreated(sseC.NotificationCreated)
	sseC.Start(ctx, ssePingInterval)
	handle("/notifications/events", requireSession(sseC.HandleEvents), http.MethodGet)

	pushC := pushController.New(config, managers.Push)
	handle("/push/key", requireSession(pushC.GetPushSubscriptionKey), http.MethodGet)
	handle("/push/subscribe", requireSession(pushC.Subscribe), http.MethodPost)
	handle("/push/unsubscribe", requireSession(pushC.Unsubscribe), http.MethodPost)

	var handler http.Handler = router
	handler = handlers.CORS(
		handlers.AllowedOrigins(config.CorsOrigins),
		handlers.AllowedHeaders([]string{"Origin", "X-Requested-With", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
	)(handler)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(log.StandardLogger()),
		handlers.PrintRecoveryStack(config.Debug),
	)(handler)
	return handlers.LoggingHandler(os.Stdout, handler)
}
