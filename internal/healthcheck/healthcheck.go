package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Probe returns details shown under "stats" in the health response.
type Probe func() any

// NormalizeListen turns a bare port such as "8080" into ":8080".
func NormalizeListen(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, ":") {
		return ":" + raw
	}
	return raw
}

func NewHandler(component string, started time.Time, probe Probe) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":    "ok",
			"component": component,
			"uptime":    time.Since(started).Round(time.Second).String(),
		}
		if probe != nil {
			body["stats"] = probe()
		}
		c.JSON(http.StatusOK, body)
	})
	return r
}

// StartServer serves /health on addr until ctx is done.
func StartServer(ctx context.Context, logger *slog.Logger, addr, component string, probe Probe) (*http.Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           NewHandler(component, time.Now(), probe),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("health_server_error", "addr", addr, "error", err.Error())
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("health_server_started", "addr", ln.Addr().String(), "component", component)
	return srv, nil
}
