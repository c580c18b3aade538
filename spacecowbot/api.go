package spacecowbot

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

const (
	xRequestIDHeader = "X-Request-ID"

	apiPathHealth      = "/healthz"
	apiPathLeaderboard = "/api/leaderboard"
	apiPathBalance     = "/api/balances/:user_id"
)

// API serves the read-only status endpoints: health, leaderboard and
// individual balances.
type API struct {
	config     *APIConfig
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
	db         DBI
}

func newAPI(config *APIConfig, db DBI, handler slog.Handler) *API {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	logger := slog.New(handler).With(loggerNameKey, "api")

	corsConfig := config.CORS.GINConfig()
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"*"}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		apiRequestID(),
		apiRequestLogger(logger),
		gin.Recovery(),
		cors.New(corsConfig),
	)

	a := &API{
		config: config,
		logger: logger,
		engine: engine,
		db:     db,
	}
	engine.GET(apiPathHealth, a.getHealth)
	engine.GET(apiPathLeaderboard, a.getLeaderboard)
	engine.GET(apiPathBalance, a.getBalance)

	a.httpServer = &http.Server{
		Addr:              config.Listen,
		Handler:           engine,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}
	return a
}

// Serve listens until ctx is canceled, then shuts the server down
// gracefully.
func (a *API) Serve(ctx context.Context) error {
	listener, err := net.Listen(a.config.ListenNetwork, a.config.Listen)
	if err != nil {
		return err
	}

	if a.config.SSL.Cert != "" {
		tlsCfg, tlsErr := tlsConfig(
			a.config.SSL.Cert,
			a.config.SSL.Key,
			a.config.SSL.TLSMinVersion,
		)
		if tlsErr != nil {
			return tlsErr
		}
		a.httpServer.TLSConfig = tlsCfg
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("api listening", "address", a.config.Listen)
		var serveErr error
		if a.httpServer.TLSConfig != nil {
			serveErr = a.httpServer.ServeTLS(listener, "", "")
		} else {
			serveErr = a.httpServer.Serve(listener)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			5*time.Second,
		)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	}
}

func (a *API) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) getLeaderboard(c *gin.Context) {
	balances, err := a.db.TopBalances(c.Request.Context(), leaderboardSize)
	if err != nil {
		a.logger.Error("error fetching leaderboard", tint.Err(err))
		c.JSON(
			http.StatusInternalServerError,
			gin.H{"error": "error fetching leaderboard"},
		)
		return
	}
	c.JSON(http.StatusOK, balances)
}

func (a *API) getBalance(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}
	points, _, err := a.db.UserPoints(c.Request.Context(), userID)
	if err != nil {
		a.logger.Error("error fetching balance", tint.Err(err))
		c.JSON(
			http.StatusInternalServerError,
			gin.H{"error": "error fetching balance"},
		)
		return
	}
	c.JSON(http.StatusOK, Balance{UserID: userID, Points: points})
}

func apiRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(xRequestIDHeader)
		if requestID == "" {
			requestID, _ = generateRandomHexString(8)
		}
		c.Header(xRequestIDHeader, requestID)
		c.Next()
	}
}

func apiRequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(
			"request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"request_id", c.Writer.Header().Get(xRequestIDHeader),
		)
	}
}

func generateRandomHexString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
