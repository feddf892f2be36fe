package http

import (
	"net/http"

	"hvac-booking-core/config"
	"hvac-booking-core/internal/delivery/http/handler"
	"hvac-booking-core/internal/delivery/http/middleware"
	"hvac-booking-core/pkg/response"

	"github.com/gorilla/mux"
)

type Router struct {
	router              *mux.Router
	cfg                 *config.Config
	bookingHandler      *handler.BookingHandler
	availabilityHandler *handler.AvailabilityHandler
	profileHandler      *handler.ProfileHandler
	oauthHandler        *handler.OAuthHandler
	debugHandler        *handler.DebugHandler
}

func NewRouter(
	cfg *config.Config,
	bookingHandler *handler.BookingHandler,
	availabilityHandler *handler.AvailabilityHandler,
	profileHandler *handler.ProfileHandler,
	oauthHandler *handler.OAuthHandler,
	debugHandler *handler.DebugHandler,
) *Router {
	return &Router{
		router:              mux.NewRouter(),
		cfg:                 cfg,
		bookingHandler:      bookingHandler,
		availabilityHandler: availabilityHandler,
		profileHandler:      profileHandler,
		oauthHandler:        oauthHandler,
		debugHandler:        debugHandler,
	}
}

func (r *Router) Setup() *mux.Router {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.CORS)

	// OAuth routes are browser redirects; the API key does not apply.
	auth := r.router.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/google-business", r.oauthHandler.StartFlow).Methods(http.MethodGet)
	auth.HandleFunc("/google/callback", r.oauthHandler.HandleCallback).Methods(http.MethodGet)

	api := r.router.PathPrefix("/api").Subrouter()
	api.Use(middleware.APIKey(r.cfg.API.Key))

	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	api.HandleFunc("/bookings", r.bookingHandler.CreateBooking).Methods(http.MethodPost)
	// Legacy route kept for deployed callers.
	api.HandleFunc("/book", r.bookingHandler.CreateBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}", r.bookingHandler.GetBooking).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/cancel", r.bookingHandler.CancelBooking).Methods(http.MethodPost)

	api.HandleFunc("/available-slots", r.availabilityHandler.AvailableSlots).Methods(http.MethodGet)

	api.HandleFunc("/businesses/{businessId}/profile", r.profileHandler.GetProfile).Methods(http.MethodGet)
	api.HandleFunc("/businesses/{businessId}/profile", r.profileHandler.UpdateProfile).Methods(http.MethodPut)

	if r.cfg.App.DebugRoutes {
		api.HandleFunc("/debug/bookings/{id}", r.debugHandler.BookingPayload).Methods(http.MethodGet)
	}

	return r.router
}

func (r *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]interface{}{
		"ok":     true,
		"status": "healthy",
	})
}
