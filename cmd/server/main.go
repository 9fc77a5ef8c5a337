package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/researchbridge/backend/internal/auth"
	"github.com/researchbridge/backend/internal/cache"
	"github.com/researchbridge/backend/internal/database"
	"github.com/researchbridge/backend/internal/discover"
	apperrors "github.com/researchbridge/backend/internal/errors"
	"github.com/researchbridge/backend/internal/mailer"
	"github.com/researchbridge/backend/internal/middleware"
	"github.com/researchbridge/backend/internal/monitoring"
	"github.com/researchbridge/backend/internal/openalex"
	"github.com/researchbridge/backend/internal/ratelimit"
	"github.com/researchbridge/backend/internal/resilience"
	"github.com/researchbridge/backend/internal/ror"
	"github.com/researchbridge/backend/internal/roster"
	"github.com/researchbridge/backend/internal/scoring"
	"github.com/researchbridge/backend/internal/storage"
)

func main() {
	// Structured logging setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment with defaults
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	port := getEnvOrDefault("PORT", "8080")
	mailto := getEnvOrDefault("OPENALEX_MAILTO", "hello@researchbridge.dev")
	resendKey := os.Getenv("RESEND_API_KEY")
	jwtSecret := getEnvOrDefault("JWT_SECRET", "your-super-secret-jwt-key-change-in-production")
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	// Initialize database and user service
	db, err := database.NewDB(dataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	userService := database.NewUserService(repo)
	listStore := storage.NewSQLiteStore(repo)

	// Load the embedded professor roster up front so a bad dataset fails fast
	if err := roster.Load(); err != nil {
		slog.Error("Failed to load professor roster", "error", err)
		os.Exit(1)
	}

	// Upstream clients
	openalexClient := openalex.NewClient(mailto)
	rorClient := ror.NewClient()
	mailClient := mailer.NewMailer(resendKey)
	tokenService := auth.NewTokenService(jwtSecret)

	r := gin.New()

	// Initialize monitoring system
	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	openalexClient.Instrument(appMetrics, appLogger)
	rorClient.Instrument(appMetrics, appLogger)

	discoverService := discover.NewService(openalexClient, rorClient, appLogger)

	// Add monitoring middleware first (to capture all requests)
	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))

	// Add error handling middleware
	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())

	// CORS, security headers and request timeouts
	mwConfig := middleware.DefaultConfig()
	r.Use(middleware.CORS(mwConfig))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RequestTimeout(mwConfig.RequestTimeout))

	// Rate limiting: Redis-backed when REDIS_ADDR is set, in-memory otherwise
	redisClient, err := ratelimit.NewRedisClient(redisAddr, redisPassword, 0)
	if err != nil {
		slog.Warn("Redis unavailable, rate limiting falls back to in-memory", "error", err)
	}
	rateLimiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:   60,
		BurstMultiplier: 2,
	}, appMetrics)
	r.Use(rateLimiter.IPRateLimitMiddleware())

	// Initialize response cache (15 minutes TTL) for the read-heavy surfaces
	appCache := cache.NewCache(15 * time.Minute)
	r.Use(appCache.Middleware(appMetrics, "/api/discover", "/api/professors", "/api/researchers"))

	// Register external services for degradation management. The HTTP
	// providers have no cheap ping endpoint, so their health derives
	// purely from recorded request outcomes.
	resilience.RegisterService("openalex-api", nil)
	resilience.RegisterService("ror-api", nil)
	resilience.RegisterService("resend-api", nil)
	if redisClient != nil && redisClient.IsEnabled() {
		resilience.RegisterService("redis", func(ctx context.Context) error {
			return redisClient.HealthCheck(ctx)
		})
	}

	// Start health checks in background
	resilience.StartHealthChecks(context.Background())

	r.GET("/health", func(c *gin.Context) {
		services := resilience.GetAllServiceHealth()

		healthResponse := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
			"services":  services,
		}

		for _, service := range services {
			if service.Level == resilience.LevelEmergency {
				healthResponse["status"] = "degraded"
				c.JSON(http.StatusServiceUnavailable, healthResponse)
				return
			}
		}

		c.JSON(http.StatusOK, healthResponse)
	})

	// Service health and circuit breaker monitoring endpoint
	r.GET("/health/services", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"services":         resilience.GetAllServiceHealth(),
			"circuit_breakers": resilience.GetCircuitBreakerStats(),
			"timestamp":        time.Now().Format(time.RFC3339),
		})
	})

	// Researcher discovery over OpenAlex, filtered by ROR institutions
	r.GET("/api/discover", rateLimiter.EndpointRateLimitMiddleware("discover", 30), func(c *gin.Context) {
		req := discover.Request{
			City:        c.Query("city"),
			Institution: c.Query("institution"),
			Name:        c.Query("name"),
			Area:        c.Query("area"),
			Active:      c.Query("active") == "true",
			Page:        queryInt(c, "page", 1),
			Keywords:    splitList(c.Query("keywords")),
		}

		resp, err := discoverService.Discover(c.Request.Context(), req)
		if err != nil {
			if errors.Is(err, discover.ErrMissingParameters) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "At least one search parameter is required (city, institution, name, or area)",
				})
				return
			}
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, resp)
	})

	// Hydrate saved researchers by OpenAlex ID
	r.GET("/api/researchers", func(c *gin.Context) {
		ids := splitList(c.Query("ids"))
		if len(ids) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ids parameter is required"})
			return
		}

		researchers, err := discoverService.ResearchersByID(c.Request.Context(), ids)
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"researchers": researchers,
			"scores":      scoring.ScoreResearchers(researchers, splitList(c.Query("keywords"))),
		})
	})

	// Curated professor roster with filters and batch scoring
	r.GET("/api/professors", func(c *gin.Context) {
		filter := roster.Filter{
			Query:          c.Query("q"),
			Department:     c.Query("department"),
			Interest:       c.Query("interest"),
			RecruitingOnly: c.Query("recruiting") == "true",
		}
		profs := roster.Select(filter)
		scores := scoring.ScoreProfessors(profs, splitList(c.Query("keywords")))

		switch c.Query("sort") {
		case "alpha-asc":
			sort.SliceStable(profs, func(i, j int) bool {
				return lastName(profs[i].Name) < lastName(profs[j].Name)
			})
		case "alpha-desc":
			sort.SliceStable(profs, func(i, j int) bool {
				return lastName(profs[i].Name) > lastName(profs[j].Name)
			})
		case "rating-high":
			sort.SliceStable(profs, func(i, j int) bool {
				return scores[profs[i].ID].Stars > scores[profs[j].ID].Stars
			})
		case "rating-low":
			sort.SliceStable(profs, func(i, j int) bool {
				return scores[profs[i].ID].Stars < scores[profs[j].ID].Stars
			})
		}
		// Default order is the curated roster order

		page := queryInt(c, "page", 1)
		perPage := queryInt(c, "perPage", 10)
		if perPage < 1 || perPage > 50 {
			perPage = 10
		}
		total := len(profs)
		start := (page - 1) * perPage
		if start > total {
			start = total
		}
		end := start + perPage
		if end > total {
			end = total
		}

		c.JSON(http.StatusOK, gin.H{
			"professors":  profs[start:end],
			"scores":      scores,
			"departments": roster.Departments(),
			"pagination": gin.H{
				"currentPage": page,
				"perPage":     perPage,
				"total":       total,
			},
		})
	})

	// Single professor profile with a population-free fallback score
	r.GET("/api/professors/:id", func(c *gin.Context) {
		prof, ok := roster.ByID(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "professor not found"})
			return
		}
		score := scoring.ScoreProfessor(prof)
		c.JSON(http.StatusOK, gin.H{
			"professor": prof,
			"score":     score,
			"starLabel": scoring.ProfessorStarLabel(score.Stars),
		})
	})

	// Daily rotating recommendations for a student's interests
	r.GET("/api/recommendations", func(c *gin.Context) {
		recs := roster.Recommend(
			splitList(c.Query("interests")),
			splitList(c.Query("keywords")),
			queryInt(c, "limit", 8),
			time.Now(),
		)
		if recs == nil {
			recs = []roster.Recommendation{}
		}
		c.JSON(http.StatusOK, gin.H{
			"recommendations": recs,
			"date":            time.Now().UTC().Format("2006-01-02"),
		})
	})

	// Account creation
	r.POST("/api/users", func(c *gin.Context) {
		var req struct {
			Email      string   `json:"email"`
			Username   string   `json:"username"`
			FirstName  string   `json:"firstName"`
			Age        *int     `json:"age"`
			University string   `json:"university"`
			Interests  []string `json:"interests"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		user, err := userService.CreateUser(req.Email, req.Username, req.FirstName, req.Age, req.University, req.Interests)
		if err != nil {
			if errors.Is(err, database.ErrUserExists) {
				c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	})

	// Profile lookup by email
	r.GET("/api/users", func(c *gin.Context) {
		email := c.Query("email")
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email parameter is required"})
			return
		}

		user, err := userService.GetUser(email)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	})

	// Profile update
	r.PUT("/api/users", func(c *gin.Context) {
		var req struct {
			Email      string   `json:"email"`
			FirstName  string   `json:"firstName"`
			Age        *int     `json:"age"`
			University string   `json:"university"`
			Interests  []string `json:"interests"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
			return
		}

		user, err := userService.UpdateUser(req.Email, req.FirstName, req.Age, req.University, req.Interests)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	})

	// Email verification via Resend
	r.POST("/api/send-verification", func(c *gin.Context) {
		if !mailClient.IsConfigured() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Email service not configured (missing RESEND_API_KEY)",
			})
			return
		}

		var req struct {
			Email           string `json:"email"`
			Username        string `json:"username"`
			VerificationURL string `json:"verificationUrl"`
		}
		if err := c.BindJSON(&req); err != nil || req.Email == "" || req.Username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}

		token, err := tokenService.GenerateVerificationToken(req.Email)
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		base := req.VerificationURL
		if base == "" {
			base = "http://localhost:3000/verify"
		}
		verificationURL := base + "?token=" + token

		id, err := mailClient.SendVerification(c.Request.Context(), req.Email, req.Username, verificationURL)
		if err != nil {
			resilience.RecordError("resend-api", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send verification email"})
			return
		}
		resilience.RecordRequest("resend-api", true)
		appMetrics.IncrementResendCalls()

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Verification email sent",
			"id":      id,
		})
	})

	// Token validation for the verification landing page
	r.GET("/api/verify", func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token parameter is required"})
			return
		}
		email, err := tokenService.ValidateVerificationToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": true, "email": email})
	})

	// Keyed persistence for saved lists and applications
	r.GET("/api/lists", func(c *gin.Context) {
		keys, err := listStore.Keys(c.Query("prefix"))
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"keys": keys})
	})

	r.GET("/api/lists/:key", func(c *gin.Context) {
		var value json.RawMessage
		if err := listStore.Get(c.Param("key"), &value); err != nil {
			if errors.Is(err, storage.ErrKeyNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "list not found"})
				return
			}
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": c.Param("key"), "value": value})
	})

	r.PUT("/api/lists/:key", func(c *gin.Context) {
		var value json.RawMessage
		if err := c.BindJSON(&value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		if err := listStore.Set(c.Param("key"), value); err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": c.Param("key"), "saved": true})
	})

	r.DELETE("/api/lists/:key", func(c *gin.Context) {
		if err := listStore.Remove(c.Param("key")); err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": c.Param("key"), "deleted": true})
	})

	registerSavedItemRoutes(r, repo)

	// Swagger documentation endpoint
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Metrics endpoint for monitoring
	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, appMetrics.GetStats())
	})

	// Cache stats endpoint
	r.GET("/cache/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, appCache.Stats())
	})

	// Rate limiter stats endpoint
	r.GET("/ratelimit/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, rateLimiter.GetStats())
	})

	// Connection pool stats endpoints
	r.GET("/pools/openalex", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "openalex",
			"stats": openalexClient.GetPoolStats(),
		})
	})

	r.GET("/pools/ror", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "ror",
			"stats": rorClient.GetPoolStats(),
		})
	})

	r.GET("/pools/database", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"pool":  "database",
			"stats": db.GetPoolStats(),
		})
	})

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close upstream connection pools
	openalexClient.Close()
	rorClient.Close()
	if redisClient != nil {
		redisClient.Close()
	}

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

// Helper function for environment variables with defaults
// registerSavedItemRoutes exposes structured list items: each entry keeps
// a JSON snapshot of the saved researcher or professor so the list page
// can render without re-fetching upstream records.
func registerSavedItemRoutes(r gin.IRouter, repo *database.Repository) {
	r.GET("/api/lists/:key/items", func(c *gin.Context) {
		items, err := repo.GetSavedItems(c.Param("key"))
		if err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	r.POST("/api/lists/:key/items", func(c *gin.Context) {
		var body struct {
			ItemID  string          `json:"itemId"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := c.BindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		if strings.TrimSpace(body.ItemID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "itemId is required"})
			return
		}
		payload := string(body.Payload)
		if payload == "" {
			payload = "{}"
		}

		item := database.NewSavedItem(c.Param("key"), body.ItemID, payload)
		if err := repo.SaveItem(item); err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"item": item})
	})

	r.DELETE("/api/lists/:key/items/:id", func(c *gin.Context) {
		if err := repo.DeleteSavedItem(c.Param("key"), c.Param("id")); err != nil {
			appErr := apperrors.ToAppError(err)
			apperrors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// splitList parses a comma-separated query parameter, dropping empties.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func lastName(full string) string {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return ""
	}
	return strings.ToLower(parts[len(parts)-1])
}
