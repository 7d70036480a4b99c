package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/harshyadav028/stock-simulator-manus-ai/internal/database"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/middleware"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/models"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/quotes"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/service"
)

type Handler struct {
	repo        *database.Repo
	executor    *service.Executor
	valuator    *service.Valuator
	snapshotter *service.Snapshotter
	provider    quotes.Provider
	yahoo       *quotes.YahooClient
	auth        *middleware.Auth
	log         *logrus.Logger
}

func NewHandler(repo *database.Repo, executor *service.Executor, valuator *service.Valuator,
	snapshotter *service.Snapshotter, provider quotes.Provider, yahoo *quotes.YahooClient,
	auth *middleware.Auth, log *logrus.Logger) *Handler {
	return &Handler{
		repo:        repo,
		executor:    executor,
		valuator:    valuator,
		snapshotter: snapshotter,
		provider:    provider,
		yahoo:       yahoo,
		auth:        auth,
		log:         log,
	}
}

// Register wires all routes onto the engine. Everything under /api
// except user creation requires a bearer token.
func (h *Handler) Register(r *gin.Engine, rateLimitPerMinute int) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	// registration has no identity yet, so its limiter keys by address
	api.POST("/users", middleware.RateLimit(rateLimitPerMinute), h.CreateUser)

	authed := api.Group("")
	authed.Use(h.auth.Authenticate(), middleware.RateLimit(rateLimitPerMinute))
	authed.POST("/transactions", h.PostTransaction)
	authed.GET("/transactions", h.ListTransactions)
	authed.GET("/transactions/:id", h.GetTransaction)
	authed.GET("/portfolio", h.GetPortfolio)
	authed.GET("/portfolio/performance", h.GetPerformance)
	authed.GET("/portfolio/history", h.GetHistory)
	authed.GET("/stocks/quote/:symbol", h.GetQuote)
	authed.GET("/stocks/search", h.SearchStocks)
	authed.GET("/stocks/chart/:symbol", h.GetChart)
	authed.GET("/stocks/trending", h.GetTrending)
	authed.GET("/stocks/news", h.GetNews)
	authed.GET("/stocks/news/:symbol", h.GetNews)
	authed.GET("/watchlist", h.ListWatchlist)
	authed.POST("/watchlist", h.AddWatchlistItem)
	authed.DELETE("/watchlist/:symbol", h.RemoveWatchlistItem)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type CreateUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid post body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.repo.CreateUser(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	token, err := h.auth.GenerateToken(user.ID)
	if err != nil {
		h.log.Errorf("sign token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

type OrderBody struct {
	Side        string `json:"side" binding:"required"`
	Symbol      string `json:"symbol" binding:"required"`
	CompanyName string `json:"company_name"`
	Quantity    int64  `json:"quantity" binding:"required"`
	OrderKind   string `json:"order_kind"`
	LimitPrice  string `json:"limit_price"`
}

func (h *Handler) PostTransaction(c *gin.Context) {
	var body OrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.log.Warnf("invalid post body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := service.OrderRequest{
		UserID:      middleware.UserID(c),
		Side:        models.Side(strings.ToUpper(body.Side)),
		Symbol:      body.Symbol,
		CompanyName: body.CompanyName,
		Quantity:    body.Quantity,
		Kind:        models.OrderKind(strings.ToUpper(body.OrderKind)),
	}
	if body.LimitPrice != "" {
		lp, err := decimal.NewFromString(body.LimitPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit_price format"})
			return
		}
		req.LimitPrice = &lp
	}

	result, err := h.executor.Execute(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"transaction": result.Transaction,
		"account":     result.Account,
		"holding":     result.Holding,
	})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	txs, err := h.repo.ListTransactions(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *Handler) GetTransaction(c *gin.Context) {
	tx, err := h.repo.GetTransaction(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

func (h *Handler) GetPortfolio(c *gin.Context) {
	userID := middleware.UserID(c)
	portfolio, err := h.valuator.Valuate(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	// record today's snapshot opportunistically; failures only log
	if _, err := h.snapshotter.Record(c.Request.Context(), portfolio); err != nil {
		h.log.Warnf("snapshot for %s: %v", userID, err)
	}
	c.JSON(http.StatusOK, portfolio)
}

func (h *Handler) GetPerformance(c *gin.Context) {
	perf, err := h.valuator.Performance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, perf)
}

func (h *Handler) GetHistory(c *gin.Context) {
	snaps, err := h.snapshotter.History(c.Request.Context(), middleware.UserID(c), c.Query("period"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

func (h *Handler) GetQuote(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	qs, err := h.provider.GetQuotes(c.Request.Context(), []string{symbol})
	if err != nil {
		h.writeError(c, err)
		return
	}
	q, ok := qs[symbol]
	if !ok {
		h.writeError(c, models.ErrSymbolNotFound)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *Handler) SearchStocks(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	raw, err := h.yahoo.Search(c.Request.Context(), query)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (h *Handler) GetChart(c *gin.Context) {
	interval := c.DefaultQuery("interval", "1d")
	rng := c.DefaultQuery("range", "1mo")
	raw, err := h.yahoo.Chart(c.Request.Context(), strings.ToUpper(c.Param("symbol")), interval, rng)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// WatchedSymbol is a watchlist row with a live price attached. Stale
// is set when the provider could not price the symbol this request.
type WatchedSymbol struct {
	models.WatchlistItem
	Price decimal.Decimal `json:"price"`
	Stale bool            `json:"stale"`
}

func (h *Handler) GetTrending(c *gin.Context) {
	region := strings.ToUpper(c.DefaultQuery("region", "US"))
	raw, err := h.yahoo.Trending(c.Request.Context(), region)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (h *Handler) GetNews(c *gin.Context) {
	raw, err := h.yahoo.News(c.Request.Context(), strings.ToUpper(c.Param("symbol")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (h *Handler) ListWatchlist(c *gin.Context) {
	items, err := h.repo.ListWatchlist(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	symbols := make([]string, 0, len(items))
	for _, it := range items {
		symbols = append(symbols, it.Symbol)
	}
	priced := map[string]quotes.Quote{}
	if len(symbols) > 0 {
		priced, err = h.provider.GetQuotes(c.Request.Context(), symbols)
		if err != nil {
			h.log.Warnf("watchlist quotes: %v", err)
			priced = map[string]quotes.Quote{}
		}
	}

	out := make([]WatchedSymbol, 0, len(items))
	for _, it := range items {
		w := WatchedSymbol{WatchlistItem: it, Stale: true}
		if q, ok := priced[it.Symbol]; ok {
			w.Price = q.Price
			w.Stale = false
		}
		out = append(out, w)
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": out})
}

type WatchlistBody struct {
	Symbol      string `json:"symbol" binding:"required"`
	CompanyName string `json:"company_name"`
}

func (h *Handler) AddWatchlistItem(c *gin.Context) {
	var body WatchlistBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	symbol := strings.ToUpper(body.Symbol)
	name := body.CompanyName
	if name == "" {
		if qs, err := h.provider.GetQuotes(c.Request.Context(), []string{symbol}); err == nil {
			if q, ok := qs[symbol]; ok {
				name = q.CompanyName
			}
		}
	}
	if err := h.repo.AddWatchlistItem(c.Request.Context(), middleware.UserID(c), symbol, name); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"symbol": symbol})
}

func (h *Handler) RemoveWatchlistItem(c *gin.Context) {
	if err := h.repo.RemoveWatchlistItem(c.Request.Context(), middleware.UserID(c), strings.ToUpper(c.Param("symbol"))); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// writeError maps domain errors onto HTTP statuses. Anything not
// recognized is logged and reported as a plain 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
	case errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInsufficientShares),
		errors.Is(err, models.ErrNoSuchHolding):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrLimitNotMet):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrSymbolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrProviderUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "quote provider unavailable"})
	default:
		h.log.Errorf("unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
