package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/middlewares"
	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/reports"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"bitbucket.org/iglesiacentral/comunidad_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("comunidad-backend")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// respondError maps workflow/model errors onto HTTP statuses with messages a
// treasurer (not a programmer) can act on.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorAlreadyProcessed):
		c.JSON(http.StatusConflict, gin.H{"error": "this submission was already handled by another administrator"})
	case errors.Is(err, utils.ErrorVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "the record changed while you were editing; reload and try again"})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, utils.ErrorAuditNoteRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "an audit note explaining the change is required"})
	case errors.Is(err, utils.ErrorEventSelectionRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "an event is scheduled for this date; choose one before accepting"})
	case errors.Is(err, utils.ErrorInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
	case errors.Is(err, utils.ErrorPartialBatchFailure):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no entries were saved; fix the bundle and retry it in full"})
	case errors.Is(err, utils.ErrorUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := models.Logout(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func submitIntentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDonationIntent
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		intent, err := models.SubmitDonationIntent(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, intent)
	}
}

func listIntentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin, models.UserRolePastor); err != nil {
			respondError(c, err)
			return
		}
		intents, err := models.GetDonationIntents(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"intents": intents})
	}
}

func acceptIntentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input workflow.AcceptIntentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entry, err := workflow.AcceptDonationIntent(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func rejectIntentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := workflow.RejectDonationIntent(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func postBundleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var bundle workflow.NewOfferingBundle
		if err := c.ShouldBindJSON(&bundle); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entries, err := workflow.PostOfferingBundle(c.Request.Context(), &bundle)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"entries": entries,
			"total":   bundle.Total(),
		})
	}
}

func entryFilterFromQuery(c *gin.Context) (*models.LedgerEntryFilter, error) {
	filter := &models.LedgerEntryFilter{}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, fmt.Errorf("from: expected YYYY-MM-DD")
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, fmt.Errorf("to: expected YYYY-MM-DD")
		}
		filter.To = &t
	}
	if v := c.Query("event_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("event_id: expected an integer")
		}
		filter.EventId = &id
	}
	if v := c.Query("donor"); v != "" {
		filter.DonorName = &v
	}
	if v := c.Query("type"); v != "" {
		entryType := models.EntryType(v)
		if entryType != models.EntryTypeIncome && entryType != models.EntryTypeExpense {
			return nil, fmt.Errorf("type: expected income or expense")
		}
		filter.EntryType = &entryType
	}
	return filter, nil
}

// eventTitlesFor resolves the titles of every event referenced by the page of
// entries, batched through the request dataloader. Lookup failures leave the
// id out of the map; clients fall back to the entry concept.
func eventTitlesFor(ctx context.Context, entries []*models.LedgerEntry) map[int]string {
	ids := make([]int, 0, len(entries))
	seen := make(map[int]bool)
	for _, entry := range entries {
		if entry.EventId == nil || seen[*entry.EventId] {
			continue
		}
		seen[*entry.EventId] = true
		ids = append(ids, *entry.EventId)
	}
	titles := make(map[int]string, len(ids))
	events, _ := middlewares.GetEvents(ctx, ids)
	for _, event := range events {
		if event != nil {
			titles[event.ID] = event.Title
		}
	}
	return titles
}

func listEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin, models.UserRolePastor); err != nil {
			respondError(c, err)
			return
		}
		filter, err := entryFilterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entries, err := models.GetLedgerEntries(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		revision, _ := models.GetLedgerRevision(ctx)
		c.JSON(http.StatusOK, gin.H{
			"entries":      entries,
			"event_titles": eventTitlesFor(ctx, entries),
			"revision":     revision,
		})
	}
}

func createEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin, models.UserRolePastor); err != nil {
			respondError(c, err)
			return
		}
		var input models.NewLedgerEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entry, err := models.CreateLedgerEntry(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

func getEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin, models.UserRolePastor); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		entry, err := models.GetLedgerEntry(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		events, err := models.GetEntryEvents(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entry": entry, "history": events})
	}
}

func updateEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.UpdateLedgerEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entry, err := models.EditLedgerEntry(ctx, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

type deleteEntryRequest struct {
	AuditNote string `json:"audit_note" binding:"required"`
}

func deleteEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req deleteEntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "an audit note explaining the change is required"})
			return
		}
		if _, err := models.RemoveLedgerEntry(ctx, id, req.AuditNote); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func balanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin, models.UserRolePastor); err != nil {
			respondError(c, err)
			return
		}
		filter, err := entryFilterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		balance, err := models.GetLedgerBalance(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance})
	}
}

func listClosuresHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin, models.UserRolePastor); err != nil {
			respondError(c, err)
			return
		}
		filter, err := entryFilterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		closures, ungrouped, err := workflow.GetEventClosures(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"closures": closures, "ungrouped": ungrouped})
	}
}

func exportClosureHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handler.exportClosure")
		defer span.End()
		if err := models.RequireRole(ctx, models.UserRoleAdmin, models.UserRolePastor); err != nil {
			respondError(c, err)
			return
		}
		eventId, ok := pathId(c, "eventId")
		if !ok {
			return
		}
		if _, err := models.ResolveEvent(ctx, eventId); err != nil {
			respondError(c, err)
			return
		}
		closures, _, err := workflow.GetEventClosures(ctx, &models.LedgerEntryFilter{EventId: &eventId})
		if err != nil {
			respondError(c, err)
			return
		}
		if len(closures) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "no entries for this event"})
			return
		}

		filename := fmt.Sprintf("cierre-evento-%d.xlsx", eventId)
		c.Header("Content-Type", reports.XlsxContentType)
		c.Header("Content-Disposition", "attachment; filename="+filename)
		if err := reports.WriteClosureXlsx(c.Writer, closures[0]); err != nil {
			config.LogError(config.GetLogger(), "server.go", "exportClosureHandler", "WriteClosureXlsx", eventId, err)
		}
	}
}

func listDonorsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin, models.UserRolePastor); err != nil {
			respondError(c, err)
			return
		}
		var scope workflow.DonorScope
		if err := c.ShouldBindQuery(&scope); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profiles, err := workflow.GetDonorProfiles(ctx, scope)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"donors": profiles})
	}
}

func deleteDonorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		donorKey := c.Param("key")
		var req deleteEntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "an audit note explaining the change is required"})
			return
		}
		removed, err := workflow.DeleteDonorFamily(c.Request.Context(), donorKey, req.AuditNote)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed_entries": removed})
	}
}

func listSalaryRecordsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin); err != nil {
			respondError(c, err)
			return
		}
		var year *int
		if v := c.Query("year"); v != "" {
			y, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "year: expected an integer"})
				return
			}
			year = &y
		}
		records, err := models.GetSalaryRecords(ctx, year)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"salary_records": records})
	}
}

func createSalaryRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin); err != nil {
			respondError(c, err)
			return
		}
		var input models.NewSalaryRecord
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		record, err := models.CreateSalaryRecord(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, record)
	}
}

func markSalaryPaidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		record, err := models.MarkSalaryRecordPaid(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func salarySuggestionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.RequireRole(ctx, models.UserRoleAdmin); err != nil {
			respondError(c, err)
			return
		}
		now := time.Now()
		month, year := int(now.Month()), now.Year()
		if v := c.Query("month"); v != "" {
			m, err := strconv.Atoi(v)
			if err != nil || m < 1 || m > 12 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "month: expected 1-12"})
				return
			}
			month = m
		}
		if v := c.Query("year"); v != "" {
			y, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "year: expected an integer"})
				return
			}
			year = y
		}
		suggestion, err := models.SuggestSalaryAllocation(ctx, time.Month(month), year)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"month": month, "year": year, "suggested_amount": suggestion})
	}
}

func listEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		date := time.Now()
		if v := c.Query("date"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date: expected YYYY-MM-DD"})
				return
			}
			date = t
		}
		events, err := models.ListEventsOnDate(ctx, date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

// revisionsHandler backs the dashboards' polling loop: clients refetch only
// when a counter moved.
func revisionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		intents, _ := models.GetIntentRevision(ctx)
		ledger, _ := models.GetLedgerRevision(ctx)
		c.JSON(http.StatusOK, gin.H{"intents": intents, "ledger": ledger})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS
	// (comma-separated); in non-production allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "X-Correlation-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.LoaderMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/auth/login", loginHandler())
	r.POST("/auth/logout", middlewares.RequireSession(), logoutHandler())

	// Member intake: any logged-in member may declare a donation.
	r.POST("/intents", middlewares.RequireSession(), submitIntentHandler())

	authed := r.Group("/", middlewares.RequireSession())
	authed.GET("/intents", listIntentsHandler())
	authed.POST("/intents/:id/accept", acceptIntentHandler())
	authed.POST("/intents/:id/reject", rejectIntentHandler())
	authed.POST("/bundles", postBundleHandler())
	authed.GET("/entries", listEntriesHandler())
	authed.POST("/entries", createEntryHandler())
	authed.GET("/entries/balance", balanceHandler())
	authed.GET("/entries/:id", getEntryHandler())
	authed.PATCH("/entries/:id", updateEntryHandler())
	authed.DELETE("/entries/:id", deleteEntryHandler())
	authed.GET("/closures", listClosuresHandler())
	authed.GET("/closures/:eventId/export", exportClosureHandler())
	authed.GET("/donors", listDonorsHandler())
	authed.DELETE("/donors/:key", deleteDonorHandler())
	authed.GET("/salary-records", listSalaryRecordsHandler())
	authed.POST("/salary-records", createSalaryRecordHandler())
	authed.POST("/salary-records/:id/paid", markSalaryPaidHandler())
	authed.GET("/salary-records/suggestion", salarySuggestionHandler())
	authed.GET("/events", listEventsHandler())
	authed.GET("/revisions", revisionsHandler())

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
