// Package status exposes a small HTTP surface for liveness probes and
// operational introspection.
package status

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hexflood/switchboard/internal/journal"
)

// OffsetSource reports the dispatcher's current update watermark.
type OffsetSource interface {
	Offset() int64
}

// StatsSource reports per-handler outcome counts.
type StatsSource interface {
	Stats(since time.Time) ([]journal.HandlerStats, error)
}

// StartOpts holds configuration for the status server.
type StartOpts struct {
	Offset OffsetSource
	Stats  StatsSource
	Port   int
	Out    io.Writer
}

// Start launches the status HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Offset == nil {
		return fmt.Errorf("status: offset source is required")
	}
	if opts.Stats == nil {
		return fmt.Errorf("status: stats source is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(opts.Offset, opts.Stats)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Status endpoint at http://localhost:%d/status\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status: %w", err)
	}
	return nil
}

func newRouter(offset OffsetSource, stats StatsSource) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	router.GET("/status", func(c *gin.Context) {
		handlerStats, err := stats.Stats(time.Now().Add(-24 * time.Hour))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"offset":   offset.Offset(),
			"handlers": handlerStats,
		})
	})

	return router
}
