package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"arbflow/config"
	"arbflow/logger"
	"arbflow/models"
	"arbflow/scanner"
)

// OpportunitySource serves the latest batch and runs on-demand scans.
// Satisfied by scanner.Scanner.
type OpportunitySource interface {
	Latest() (models.OpportunityBatch, bool)
	RunOnce(ctx context.Context) (models.OpportunityBatch, error)
}

// SettingsStore is the persistence surface for per-user settings. Satisfied
// by writer.SettingsStore.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (models.BotSettings, error)
	Upsert(ctx context.Context, bs models.BotSettings) error
}

// TradeLogStore is the persistence surface for execution records. Satisfied
// by writer.TradeLogStore.
type TradeLogStore interface {
	Insert(ctx context.Context, tl models.TradeLog) (int64, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]models.TradeLog, error)
	Stats(ctx context.Context, userID string) (models.DashboardStats, error)
}

// Server hosts the REST API and the websocket opportunity stream. The
// settings and trade log stores are optional; endpoints backed by a nil
// store answer 503.
type Server struct {
	cfg        *config.Config
	source     OpportunitySource
	settings   SettingsStore
	tradeLogs  TradeLogStore
	hub        *Hub
	httpServer *http.Server
	log        *logger.Log
}

func New(cfg *config.Config, source OpportunitySource, settings SettingsStore, tradeLogs TradeLogStore, hub *Hub) *Server {
	return &Server{
		cfg:       cfg,
		source:    source,
		settings:  settings,
		tradeLogs: tradeLogs,
		hub:       hub,
		log:       logger.GetLogger(),
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:    normalizeAddr(s.cfg.Server.Addr),
		Handler: router,
	}

	s.log.WithComponent("server").WithFields(logger.Fields{
		"addr": s.httpServer.Addr,
	}).Info("starting api server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/ws/opportunities", func(c *gin.Context) {
		s.hub.serve(c.Writer, c.Request)
	})

	api := router.Group("/api")
	{
		api.GET("/opportunities", s.handleOpportunities)
		api.POST("/scan", s.handleScan)
		api.GET("/platforms", s.handlePlatforms)
		api.GET("/settings", s.handleGetSettings)
		api.PUT("/settings", s.handlePutSettings)
		api.POST("/settings", s.handlePutSettings)
		api.GET("/logs", s.handleListLogs)
		api.POST("/logs", s.handleInsertLog)
		api.GET("/dashboard/stats", s.handleDashboardStats)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// batchView renders a batch for the response boundary with fixed decimal
// strings.
func batchView(batch models.OpportunityBatch) gin.H {
	views := make([]models.OpportunityView, 0, len(batch.Opportunities))
	for _, opp := range batch.Opportunities {
		views = append(views, opp.Display())
	}
	return gin.H{
		"cycle_id":      batch.CycleID,
		"opportunities": views,
		"started_at":    batch.StartedAt.UTC().Format(time.RFC3339),
		"duration_ms":   batch.Duration.Milliseconds(),
	}
}

func (s *Server) handleOpportunities(c *gin.Context) {
	batch, ok := s.source.Latest()
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"cycle_id":      "",
			"opportunities": []models.OpportunityView{},
		})
		return
	}
	c.JSON(http.StatusOK, batchView(batch))
}

func (s *Server) handleScan(c *gin.Context) {
	batch, err := s.source.RunOnce(c.Request.Context())
	if err != nil {
		s.log.WithComponent("server").WithError(err).Warn("on-demand scan failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, batchView(batch))
}

func (s *Server) handlePlatforms(c *gin.Context) {
	names := s.cfg.EnabledExchanges()
	platforms := make([]gin.H, 0, len(names))
	for _, name := range names {
		ex := s.cfg.Exchanges[name]
		platforms = append(platforms, gin.H{
			"name":                name,
			"has_credentials":     ex.HasCredentials(),
			"maker_fee":           ex.MakerFee.String(),
			"taker_fee":           ex.TakerFee.String(),
			"withdrawal_fee_usdt": ex.WithdrawalFeeUsdt.String(),
			"networks":            ex.Networks,
		})
	}
	c.JSON(http.StatusOK, gin.H{"platforms": platforms})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	if s.settings == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "settings storage is disabled"})
		return
	}

	bs, err := s.settings.Get(c.Request.Context(), s.userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bs)
}

func (s *Server) handlePutSettings(c *gin.Context) {
	if s.settings == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "settings storage is disabled"})
		return
	}

	var bs models.BotSettings
	if err := c.ShouldBindJSON(&bs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bs.UserID = s.userID(c)

	switch bs.RiskLevel {
	case "", "low", "medium", "high":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "risk_level must be low, medium or high"})
		return
	}
	if bs.TradeAmountQuote.Sign() < 0 || bs.MinProfitPercentage.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amounts must not be negative"})
		return
	}
	bs.UpdatedAt = time.Now().UTC()

	if err := s.settings.Upsert(c.Request.Context(), bs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bs)
}

func (s *Server) handleListLogs(c *gin.Context) {
	if s.tradeLogs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade log storage is disabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	logs, err := s.tradeLogs.ListRecent(c.Request.Context(), s.userID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []models.TradeLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (s *Server) handleInsertLog(c *gin.Context) {
	if s.tradeLogs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade log storage is disabled"})
		return
	}

	var tl models.TradeLog
	if err := c.ShouldBindJSON(&tl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tl.UserID = s.userID(c)

	switch tl.Status {
	case "executed", "failed", "simulated":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be executed, failed or simulated"})
		return
	}
	if tl.Pair == "" || tl.BuyExchange == "" || tl.SellExchange == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pair, buy_exchange and sell_exchange are required"})
		return
	}

	id, err := s.tradeLogs.Insert(c.Request.Context(), tl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	tl.ID = id
	c.JSON(http.StatusCreated, tl)
}

func (s *Server) handleDashboardStats(c *gin.Context) {
	if s.tradeLogs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade log storage is disabled"})
		return
	}

	stats, err := s.tradeLogs.Stats(c.Request.Context(), s.userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// userID resolves the acting user. A single-operator deployment uses the
// default profile; the header leaves room for a gateway that authenticates.
func (s *Server) userID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-User-ID")); id != "" {
		return id
	}
	return scanner.DefaultUserID
}

func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "0.0.0.0:8080"
	}
	if strings.HasPrefix(addr, ":") {
		return "0.0.0.0" + addr
	}
	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}
	return addr
}
