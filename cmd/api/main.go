package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	qrcode "github.com/skip2/go-qrcode"

	"prayerlog/internal/archive"
	"prayerlog/internal/attendance"
	"prayerlog/internal/auth"
	"prayerlog/internal/cache"
	"prayerlog/internal/config"
	"prayerlog/internal/httpmiddleware"
	"prayerlog/internal/metrics"
	"prayerlog/internal/model"
	"prayerlog/internal/outbox"
	"prayerlog/internal/report"
	"prayerlog/internal/sheets"
	appsync "prayerlog/internal/sync"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	var store cache.Store
	var redisStore *cache.RedisStore
	if cfg.CacheBackend == "memory" {
		store = cache.NewMemory()
	} else {
		redisStore = cache.NewRedis(cfg.RedisAddr)
		store = redisStore
	}

	var out outbox.Queue
	memoryOutbox := cfg.OutboxBackend == "memory" || redisStore == nil
	if memoryOutbox {
		out = outbox.NewInMemory(64)
	} else {
		out = outbox.NewRedisOutbox(redisStore.Client, "prayerlog:outbox")
	}

	sheet := sheets.New(cfg.SheetURL, cfg.SheetTimeout, cfg.SheetSkip || cfg.SheetURL == "")
	syncer := appsync.NewSyncer(sheet, store, appsync.ParsePolicy(cfg.StudentSyncPolicy))

	// Archive mirror (nil when not configured)
	var arch *archive.Archive
	if cfg.DatabaseURL != "" {
		var err error
		arch, err = archive.Open(cfg.DatabaseURL)
		if err != nil {
			log.Printf("warning: archive not reachable: %v", err)
			arch = nil
		} else {
			log.Println("archive configured")
		}
	}
	defer arch.Close()

	svc := attendance.NewService(store, out, arch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The memory outbox has no separate worker process to drain it, so
	// deliver queued writes from inside this process.
	if memoryOutbox {
		go drainOutbox(ctx, out, sheet)
	}

	// Warm the cache from the sheet, then keep it warm in the background.
	syncer.Refresh(ctx)
	if cfg.SyncInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					syncer.Refresh(ctx)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin, "/healthz", "/metrics").Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		cacheHealthy := true
		if redisStore != nil {
			cacheHealthy = redisStore.Healthy(c.Request.Context())
		}
		status := http.StatusOK
		if !cacheHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "cache": cacheHealthy, "archive": arch != nil})
	})

	r.POST("/v1/auth/login", func(c *gin.Context) {
		var req struct {
			Username  string     `json:"username" binding:"required"`
			Role      model.Role `json:"role" binding:"required"`
			Password  string     `json:"password" binding:"required"`
			StudentID string     `json:"studentId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !req.Role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
			return
		}

		var secret string
		switch req.Role {
		case model.RoleAdmin:
			secret = cfg.AdminPassword
		case model.RoleStaff:
			secret = cfg.StaffPassword
		case model.RoleGuardian:
			secret = cfg.GuardianPassword
		}
		if !auth.CheckPassword(secret, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
			return
		}

		sess := model.Session{Username: req.Username, Role: req.Role}
		if req.Role == model.RoleGuardian {
			if req.StudentID == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "guardian login requires studentId"})
				return
			}
			students, err := cache.Students(c.Request.Context(), store)
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache unavailable"})
				return
			}
			for _, st := range students {
				if st.ID == req.StudentID {
					snapshot := st
					sess.Student = &snapshot
					break
				}
			}
			if sess.Student == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
		}

		token, exp, err := auth.Issue(sess, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		if err := cache.SetSession(c.Request.Context(), store, sess); err != nil {
			log.Printf("session persist failed for %s: %v", req.Username, err)
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token": token,
			"expires_at":   exp.Unix(),
			"session":      sess,
		})
	})

	authed := r.Group("/v1", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer))
	staff := r.Group("/v1", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, model.RoleAdmin, model.RoleStaff))
	admin := r.Group("/v1", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, model.RoleAdmin))

	authed.POST("/auth/logout", func(c *gin.Context) {
		claims := auth.FromContext(c)
		_ = cache.ClearSession(c.Request.Context(), store, claims.Subject)
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	})

	staff.POST("/sync", func(c *gin.Context) {
		students, records := syncer.Refresh(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"students": len(students), "records": len(records)})
	})

	authed.GET("/students", func(c *gin.Context) {
		students, err := cache.Students(c.Request.Context(), store)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": students})
	})

	admin.POST("/students", func(c *gin.Context) {
		var req struct {
			Students []model.Student `json:"students" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		for _, st := range req.Students {
			if st.ID == "" || st.Name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "every student needs id and name"})
				return
			}
		}
		if err := cache.SetStudents(c.Request.Context(), store, req.Students); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		// Remote push is best-effort, same as attendance writes.
		go func(students []model.Student) {
			pushCtx, pushCancel := context.WithTimeout(context.Background(), cfg.SheetTimeout)
			defer pushCancel()
			if err := sheet.SaveStudents(pushCtx, students); err != nil {
				log.Printf("roster push failed: %v", err)
			}
		}(req.Students)
		c.JSON(http.StatusOK, gin.H{"students": len(req.Students)})
	})

	authed.GET("/students/:id/qr", func(c *gin.Context) {
		id := c.Param("id")
		size := 256
		if v := c.Query("size"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed >= 64 && parsed <= 1024 {
				size = parsed
			}
		}
		png, err := qrcode.Encode(id, qrcode.Medium, size)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr encode failed"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	staff.POST("/attendance", func(c *gin.Context) {
		var req struct {
			StudentID    string       `json:"studentId" binding:"required"`
			OperatorName string       `json:"operatorName" binding:"required"`
			Status       model.Status `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		students, err := cache.Students(c.Request.Context(), store)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache unavailable"})
			return
		}
		var student *model.Student
		for _, st := range students {
			if st.ID == req.StudentID {
				snapshot := st
				student = &snapshot
				break
			}
		}
		if student == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}

		rec, err := svc.Record(c.Request.Context(), *student, req.OperatorName, req.Status)
		if err != nil {
			if err == attendance.ErrDuplicate {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"record": rec})
	})

	staff.PATCH("/attendance/:id", func(c *gin.Context) {
		var req struct {
			Status model.Status `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		found, err := svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"found": found})
	})

	staff.DELETE("/attendance/:id", func(c *gin.Context) {
		found, err := svc.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"found": found})
	})

	authed.GET("/attendance", func(c *gin.Context) {
		claims := auth.FromContext(c)
		records, err := svc.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache unavailable"})
			return
		}
		if claims.Role == model.RoleGuardian {
			filtered := records[:0:0]
			for _, rec := range records {
				if rec.StudentID == claims.StudentID {
					filtered = append(filtered, rec)
				}
			}
			records = filtered
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	// readState loads the working set for the report views; a cache read
	// failure answers 503 rather than an empty report.
	readState := func(c *gin.Context) ([]model.Student, []model.Record, bool) {
		students, err := cache.Students(c.Request.Context(), store)
		if err == nil {
			var records []model.Record
			if records, err = cache.Records(c.Request.Context(), store); err == nil {
				return students, records, true
			}
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache unavailable"})
		return nil, nil, false
	}

	staff.GET("/reports/daily", func(c *gin.Context) {
		date := c.Query("date")
		if date == "" {
			date = model.DateKey(time.Now())
		}
		students, records, ok := readState(c)
		if !ok {
			return
		}
		rows := report.Daily(students, records, date, c.Query("class"))
		c.JSON(http.StatusOK, gin.H{"date": date, "rows": rows})
	})

	staff.GET("/reports/range", func(c *gin.Context) {
		students, records, ok := readState(c)
		if !ok {
			return
		}
		rows, dates, err := report.RangeMatrix(students, records, c.Query("from"), c.Query("to"), c.Query("class"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"dates": dates, "rows": rows})
	})

	staff.GET("/reports/monthly", func(c *gin.Context) {
		month := c.Query("month")
		if month == "" {
			month = time.Now().Format("2006-01")
		}
		students, records, ok := readState(c)
		if !ok {
			return
		}
		rows := report.Monthly(students, records, month, c.Query("class"))
		c.JSON(http.StatusOK, gin.H{"month": month, "rows": rows})
	})

	staff.GET("/reports/leaderboard", func(c *gin.Context) {
		_, records, ok := readState(c)
		if !ok {
			return
		}
		entries := report.Leaderboard(records)
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	admin.GET("/export.csv", func(c *gin.Context) {
		if arch == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive not configured"})
			return
		}
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="attendance.csv"`)
		if err := arch.ExportCSV(c.Request.Context(), c.Writer); err != nil {
			log.Printf("csv export failed: %v", err)
		}
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// drainOutbox replays queued writes against the sheet endpoint. Used only
// with the memory outbox, which no external worker can reach.
func drainOutbox(ctx context.Context, q outbox.Queue, sheet *sheets.Client) {
	messages, err := q.Consume(ctx)
	if err != nil {
		log.Printf("outbox drain disabled: %v", err)
		return
	}
	for msg := range messages {
		if err := sheet.Post(ctx, msg.Action, msg.Payload); err != nil {
			msg.Attempts++
			if msg.Attempts >= 5 {
				log.Printf("dropping %s write after %d attempts: %v", msg.Action, msg.Attempts, err)
				metrics.OutboxDeliveries.WithLabelValues("dropped").Inc()
				continue
			}
			log.Printf("%s write failed (attempt %d), requeueing: %v", msg.Action, msg.Attempts, err)
			metrics.OutboxDeliveries.WithLabelValues("retried").Inc()
			if err := q.Publish(ctx, msg); err != nil {
				log.Printf("requeue failed, write lost: %v", err)
			}
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
			continue
		}
		metrics.OutboxDeliveries.WithLabelValues("delivered").Inc()
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
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

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
