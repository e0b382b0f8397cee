package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"classtrack/internal/auth"
	"classtrack/internal/checkin"
	"classtrack/internal/config"
	"classtrack/internal/export"
	"classtrack/internal/httpmiddleware"
	"classtrack/internal/logging"
	"classtrack/internal/metrics"
	"classtrack/internal/observability"
	"classtrack/internal/postgres"
	"classtrack/internal/queue"
	"classtrack/internal/sessions"
	"classtrack/internal/store"
)

func main() {
	// .env is optional; container deployments pass real env vars.
	_ = godotenv.Load()
	cfg := config.Load()

	logg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logg.Closer()
	log := logg.Base

	closeSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, "classtrack-api")
	if err != nil {
		log.Warn("sentry init failed", zap.Error(err))
	}
	defer closeSentry()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := store.Migrate(db.Client); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:sessions")
	}

	repo := postgres.NewRepository(db.Client, cfg.Timezone)
	policy := checkin.WindowPolicy{
		Location:  cfg.Timezone,
		EarlyOpen: cfg.EarlyOpen,
		LateAfter: cfg.LateAfter,
	}
	recorder := checkin.NewRecorder(repo, repo, repo, policy, cfg.GeofenceMeters, log)
	sessionSvc := sessions.New(repo, q, cfg.QRTokenTTL, cfg.Timezone, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/login", loginHandler(repo, cfg))

	authGroup := r.Group("/v1", auth.RequireAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/checkins",
		auth.RequireRole(string(checkin.RoleStudent)),
		checkinHandler(recorder, cfg, log))

	teacherGroup := authGroup.Group("", auth.RequireRole(string(checkin.RoleTeacher)))
	teacherGroup.POST("/classes/:id/qr", issueQRHandler(sessionSvc, cfg))
	teacherGroup.POST("/sessions/:id/complete", completeHandler(sessionSvc))
	teacherGroup.GET("/classes/:id/attendance/export", exportHandler(repo, cfg, log))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

const genericErrorMessage = "Something went wrong. Please try again."

func loginHandler(repo *postgres.Repository, cfg config.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "email and password are required"})
			return
		}
		user, err := repo.GetUserByEmail(c.Request.Context(), req.Email)
		if err != nil {
			observability.CaptureErr(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrorMessage})
			return
		}
		if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid email or password"})
			return
		}
		token, exp, err := auth.Issue(user.ID, user.Name, user.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			observability.CaptureErr(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrorMessage})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"role":       user.Role,
			"expires_at": exp.Unix(),
		})
	}
}

func checkinHandler(recorder *checkin.Recorder, cfg config.App, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			QRToken   string   `json:"qr_token" binding:"required"`
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
			Datetime  string   `json:"datetime"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "qr_token is required", "success": false})
			return
		}

		var at *time.Time
		if req.Datetime != "" {
			parsed, err := parseClientTime(req.Datetime, cfg.Timezone)
			if err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "datetime must be an ISO-8601 timestamp", "success": false})
				return
			}
			at = &parsed
		}

		claims, _ := auth.FromContext(c)
		user := checkin.User{ID: claims.Subject, Name: claims.Name, Role: checkin.Role(claims.Role)}

		started := time.Now()
		result, err := recorder.CheckIn(c.Request.Context(), user, checkin.Request{
			QRToken:   req.QRToken,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			At:        at,
		})
		metrics.CheckinDuration.Observe(time.Since(started).Seconds())

		if err != nil {
			if failure, ok := checkin.AsFailure(err); ok {
				metrics.CheckinsTotal.WithLabelValues(string(failure.Kind)).Inc()
				c.JSON(statusForKind(failure.Kind), gin.H{"message": failure.Message, "success": false})
				return
			}
			metrics.CheckinsTotal.WithLabelValues("error").Inc()
			observability.CaptureErr(err)
			log.Error("check-in failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrorMessage})
			return
		}

		if result.Duplicate {
			metrics.CheckinsTotal.WithLabelValues("duplicate").Inc()
			c.JSON(http.StatusConflict, gin.H{
				"message":    "You have already checked in for this session.",
				"attendance": result.Attendance,
				"session":    sessionJSON(result.Session),
			})
			return
		}

		metrics.CheckinsTotal.WithLabelValues("success").Inc()
		c.JSON(http.StatusCreated, gin.H{
			"message":    "Checked in successfully.",
			"attendance": result.Attendance,
			"session":    sessionJSON(result.Session),
		})
	}
}

func issueQRHandler(svc *sessions.Service, cfg config.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			SessionDate string `json:"session_date" binding:"required"`
			StartTime   string `json:"start_time"`
			EndTime     string `json:"end_time"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "session_date is required"})
			return
		}
		date, err := time.ParseInLocation("2006-01-02", req.SessionDate, cfg.Timezone)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "session_date must be YYYY-MM-DD"})
			return
		}

		claims, _ := auth.FromContext(c)
		issue, err := svc.IssueQR(c.Request.Context(), c.Param("id"), claims.Subject, date, req.StartTime, req.EndTime)
		if err != nil {
			switch {
			case errors.Is(err, sessions.ErrClassNotFound):
				c.JSON(http.StatusNotFound, gin.H{"message": "class not found"})
			case errors.Is(err, sessions.ErrNotOwner):
				c.JSON(http.StatusForbidden, gin.H{"message": "you do not teach this class"})
			default:
				observability.CaptureErr(err)
				c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrorMessage})
			}
			return
		}
		c.JSON(http.StatusCreated, issue)
	}
}

func completeHandler(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := auth.FromContext(c)
		err := svc.Complete(c.Request.Context(), c.Param("id"), claims.Subject)
		if err != nil {
			switch {
			case errors.Is(err, sessions.ErrSessionNotFound):
				c.JSON(http.StatusNotFound, gin.H{"message": "session not found"})
			case errors.Is(err, sessions.ErrNotOwner):
				c.JSON(http.StatusForbidden, gin.H{"message": "you do not teach this class"})
			case errors.Is(err, sessions.ErrNotActive):
				c.JSON(http.StatusConflict, gin.H{"message": "session is not active"})
			default:
				observability.CaptureErr(err)
				c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrorMessage})
			}
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "session completed"})
	}
}

func exportHandler(repo *postgres.Repository, cfg config.App, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		classID := c.Param("id")
		claims, _ := auth.FromContext(c)

		class, err := repo.GetClassSchedule(c.Request.Context(), classID)
		if err != nil {
			observability.CaptureErr(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrorMessage})
			return
		}
		if class == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "class not found"})
			return
		}
		if class.TeacherID != claims.Subject {
			c.JSON(http.StatusForbidden, gin.H{"message": "you do not teach this class"})
			return
		}

		date := time.Now().In(cfg.Timezone)
		if v := c.Query("date"); v != "" {
			parsed, err := time.ParseInLocation("2006-01-02", v, cfg.Timezone)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"message": "date must be YYYY-MM-DD"})
				return
			}
			date = parsed
		}

		rows, err := repo.AttendanceReport(c.Request.Context(), classID, date)
		if err != nil {
			observability.CaptureErr(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrorMessage})
			return
		}
		buf, err := export.AttendanceWorkbook(class.Name, date, rows)
		if err != nil {
			observability.CaptureErr(err)
			log.Error("attendance export failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": genericErrorMessage})
			return
		}

		filename := "attendance_" + date.Format("2006-01-02") + ".xlsx"
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// HSTS only makes sense behind TLS.
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// statusForKind maps rejection kinds to HTTP codes. All validation failures
// share 422; the distinguishing information lives in the message.
func statusForKind(kind checkin.FailureKind) int {
	switch kind {
	case checkin.KindUnauthorized:
		return http.StatusUnauthorized
	case checkin.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusUnprocessableEntity
	}
}

func sessionJSON(sess *checkin.ClassSession) gin.H {
	out := gin.H{
		"session_date": sess.SessionDate.Format("2006-01-02"),
		"start_time":   sess.StartTime,
		"end_time":     sess.EndTime,
	}
	if sess.Class != nil {
		out["class_name"] = sess.Class.Name
		out["subject"] = sess.Class.Subject
		out["teacher"] = sess.Class.Teacher
		if sess.Class.Location != nil {
			out["location"] = sess.Class.Location.Name
		}
	}
	return out
}

// parseClientTime accepts RFC 3339 or a local timestamp without offset,
// interpreted in the deployment timezone.
func parseClientTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unsupported timestamp format")
}
