package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marchFitnessAPI/handlers"
	"marchFitnessAPI/internal/notification"
	"marchFitnessAPI/internal/strava"
	"marchFitnessAPI/internal/user"
	"marchFitnessAPI/internal/workers"
	"marchFitnessAPI/middleware"
	"marchFitnessAPI/services"
)

var (
	dbPool              *pgxpool.Pool
	userService         *services.UserService
	challengeService    *services.ChallengeService
	activityService     *services.ActivityService
	achievementService  *services.AchievementService
	leaderboardService  *services.LeaderboardService
	notificationService *services.NotificationService
	stravaService       *services.StravaService
	fcmService          *notification.FCMService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to database")

	rolePolicy, err := user.ParseRolePolicy(os.Getenv("ADMIN_ROLE_POLICY"))
	if err != nil {
		log.Fatal("Failed to parse ADMIN_ROLE_POLICY:", err)
	}

	notificationService = services.NewNotificationService(dbPool)
	userService = services.NewUserService(dbPool, rolePolicy)
	challengeService = services.NewChallengeService(dbPool)
	activityService = services.NewActivityService(dbPool, notificationService)
	achievementService = services.NewAchievementService(dbPool)
	leaderboardService = services.NewLeaderboardService(dbPool)

	stravaClient := strava.NewClient(os.Getenv("STRAVA_CLIENT_ID"), os.Getenv("STRAVA_CLIENT_SECRET"))
	stravaService = services.NewStravaService(dbPool, stravaClient, activityService, notificationService)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	userHandler := handlers.NewUserHandler(userService)
	challengeHandler := handlers.NewChallengeHandler(challengeService)
	activityHandler := handlers.NewActivityHandler(activityService)
	achievementHandler := handlers.NewAchievementHandler(achievementService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	stravaHandler := handlers.NewStravaHandler(stravaService)
	webhookHandler := handlers.NewWebhookHandler(userService)

	r := mux.NewRouter()

	// Webhooks sit outside the rate limiter; Clerk and Strava both retry
	// hard on anything but a quick 200.
	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	r.HandleFunc("/webhooks/strava", stravaHandler.HandleWebhookVerification).Methods("GET")
	r.HandleFunc("/webhooks/strava", stravaHandler.HandleWebhookEvent).Methods("POST")

	standardRouter := r.PathPrefix("/").Subrouter()

	go middleware.CleanupVisitors()

	standardRouter.Use(middleware.RateLimitMiddleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "march-fitness-api"}`))
	}).Methods("GET")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	// Public leaderboards; a valid token adds the viewer's own position.
	public := api.PathPrefix("").Subrouter()
	public.Use(middleware.OptionalAuthMiddleware)
	public.HandleFunc("/challenges/{id}/leaderboard", leaderboardHandler.GetCumulativeLeaderboard).Methods("GET")
	public.HandleFunc("/challenges/{id}/leaderboard/weekly", leaderboardHandler.GetWeeklyLeaderboard).Methods("GET")
	public.HandleFunc("/challenges/{id}/leaderboard/category/{categoryId}", leaderboardHandler.GetCategoryLeaderboard).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetCurrentUser).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")

	protected.HandleFunc("/challenges", challengeHandler.ListChallenges).Methods("GET")
	protected.HandleFunc("/challenges/{id}", challengeHandler.GetChallenge).Methods("GET")
	protected.HandleFunc("/challenges/{id}/join", challengeHandler.JoinChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/participation", challengeHandler.GetParticipationStatus).Methods("GET")
	protected.HandleFunc("/challenges/{id}/categories", challengeHandler.ListCategories).Methods("GET")
	protected.HandleFunc("/challenges/{id}/activity-types", challengeHandler.ListActivityTypes).Methods("GET")
	protected.HandleFunc("/challenges/{id}/achievements", achievementHandler.ListAchievements).Methods("GET")
	protected.HandleFunc("/challenges/{id}/activities", activityHandler.GetActivities).Methods("GET")

	protected.HandleFunc("/activities", activityHandler.LogActivity).Methods("POST")
	protected.HandleFunc("/activities/{id}", activityHandler.DeleteActivity).Methods("DELETE")
	protected.HandleFunc("/activities/{id}/flag", activityHandler.FlagActivity).Methods("POST")

	protected.HandleFunc("/strava/connect", stravaHandler.ConnectStrava).Methods("POST")
	protected.HandleFunc("/strava/status", stravaHandler.GetStravaStatus).Methods("GET")
	protected.HandleFunc("/strava/connect", stravaHandler.DisconnectStrava).Methods("DELETE")

	protected.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", notificationHandler.GetUnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/{id}", notificationHandler.DeleteNotification).Methods("DELETE")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	// -------------------------------------------------------------------------
	// ADMIN ROUTES
	// -------------------------------------------------------------------------
	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminMiddleware(userService.IsAdmin))

	admin.HandleFunc("/challenges", challengeHandler.CreateChallenge).Methods("POST")
	admin.HandleFunc("/challenges/{id}", challengeHandler.DeleteChallenge).Methods("DELETE")
	admin.HandleFunc("/challenges/{id}/categories", challengeHandler.CreateCategory).Methods("POST")
	admin.HandleFunc("/challenges/{id}/activity-types", challengeHandler.CreateActivityType).Methods("POST")
	admin.HandleFunc("/challenges/{id}/achievements", achievementHandler.CreateAchievement).Methods("POST")
	admin.HandleFunc("/challenges/{id}/participants/{userId}/recompute", activityHandler.RecomputeParticipation).Methods("POST")
	admin.HandleFunc("/activities/{id}/override", activityHandler.OverridePoints).Methods("PUT")
	admin.HandleFunc("/activities/{id}/resolve-flag", activityHandler.ResolveFlag).Methods("PUT")

	workers.StartStreakReminderWorker(dbPool, notificationService)

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	notificationService.Close(10 * time.Second)

	log.Println("Server shutdown complete")
}
