package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/app"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/clients"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/config"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/constants"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/controllers"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/metrics"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/routes"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/services"
	"github.com/poofware/homeservices/backend/shared/go-middleware"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	_ "time/tzdata"
)

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()
	defer cfg.Close()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize booking-service:", err)
	}
	defer application.Close()

	metrics.Register()

	// Collaborators
	backend := clients.NewHTTPBackendClient(cfg.BackendBaseURL, cfg.BackendAPIToken, constants.BackendRequestTimeout)

	var sms services.SMSSender
	if cfg.TwilioAccountSID != "" && cfg.LDFlag_TwilioFromPhone != "" {
		sms = services.NewTwilioSMSSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.LDFlag_TwilioFromPhone)
	} else {
		utils.Logger.Warn("Twilio not configured; confirmation SMS disabled")
	}
	var email services.EmailSender
	if cfg.SendgridAPIKey != "" && !utils.IsValidEmail(cfg.LDFlag_SendgridFromEmail) {
		utils.Logger.Fatalf("Invalid SendGrid sender address: %q", cfg.LDFlag_SendgridFromEmail)
	}
	if cfg.SendgridAPIKey != "" {
		email = services.NewSendGridEmailSender(cfg.SendgridAPIKey, cfg.OrganizationName, cfg.LDFlag_SendgridFromEmail, cfg.LDFlag_SendgridSandboxMode)
	} else {
		utils.Logger.Warn("SendGrid not configured; ops alerts disabled")
	}
	if cfg.StripeSecretKey == "" {
		utils.Logger.Warn("STRIPE_SECRET_KEY not set; service-seeker payments will fail")
	}

	// Services
	notifier := services.NewNotificationService(sms, email)
	reconciler := services.NewReconciler(backend, cfg.LDFlag_PollInterval, cfg.LDFlag_PollTimeout)
	gate := services.NewOutcomeGate(backend, services.NewStripePaymentProvider(cfg.StripeSecretKey), notifier, services.GateConfig{
		Currency:            cfg.PaymentCurrency,
		SendConfirmationSMS: cfg.LDFlag_SendConfirmationSMS,
	})
	bookingService := services.NewBookingService(
		backend,
		reconciler,
		gate,
		notifier,
		application.AuditRepository(),
		application.PollLock(),
		services.NewSessionRegistry(),
		services.BookingServiceConfig{
			PollOnPartialDispatch:     cfg.LDFlag_PollOnPartialDispatch,
			AlertOpsOnPartialDispatch: cfg.LDFlag_AlertOpsOnPartialDispatch,
		},
	)
	defer bookingService.Close(context.Background())

	sweeper := services.NewSessionSweeper(bookingService, constants.SessionRetention)
	if err := sweeper.Start(constants.SessionSweepCronSpec); err != nil {
		utils.Logger.WithError(err).Fatal("Failed to schedule session sweeper")
	}
	defer sweeper.Stop()

	// Controllers
	healthController := controllers.NewHealthController(application)
	bookingController := controllers.NewBookingController(bookingService)

	// Router setup
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger)

	// Public Routes
	router.HandleFunc(routes.Health, healthController.HealthCheckHandler).Methods(http.MethodGet)
	router.Handle(routes.Metrics, promhttp.Handler()).Methods(http.MethodGet)

	// Secured routes for customers
	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(cfg.RSAPublicKey))
	secured.HandleFunc(routes.Bookings, bookingController.CreateBookingHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.Booking, bookingController.GetBookingHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.BookingCancel, bookingController.CancelBookingHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.BookingPaymentRetry, bookingController.RetryPaymentHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.BookingPaymentCancel, bookingController.CancelPaymentHandler).Methods(http.MethodPost)

	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, utils.CORSLowSecurityAllowedOriginLocalhost)
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           co.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatal("booking-service failed to start:", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	utils.Logger.Info("Shutting down booking-service")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.WithError(err).Error("Graceful shutdown failed")
	}
}
