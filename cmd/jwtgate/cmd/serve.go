package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	jwtgate "github.com/gatekeep/go-jwt-gate"
	"github.com/gatekeep/go-jwt-gate/config"
	jwtgin "github.com/gatekeep/go-jwt-gate/framework/gin"
	"github.com/gatekeep/go-jwt-gate/internal/refresh"
)

// SubjectHeader carries the authorized subject back to the proxy.
const SubjectHeader = "X-Auth-Subject"

const (
	jobRefreshKeys      = "jwks-refresh"
	jobReloadRevocation = "revocation-reload"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the forward-auth service",
		Long: `Serve GET /authorize for reverse proxies. The proxy forwards the client's
Authorization header and names the required permission in the permission
header (X-Required-Permission by default). 200 means allow; any other
status carries a JSON error body to relay to the client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	s, err := a.buildStack()
	if err != nil {
		return err
	}
	defer s.Close()

	scheduler, err := a.newScheduler(s)
	if err != nil {
		return err
	}
	if err := scheduler.RunNow(jobRefreshKeys); err != nil {
		// Requests are still served; the cache fetches on first use.
		a.logger.WithError(err).Warn("initial key set fetch failed")
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           newRouter(s, a.cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", srv.Addr).Info("jwtgate listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(err, scheduler.Stop(stopCtx))
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if stopErr := scheduler.Stop(shutdownCtx); stopErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to stop scheduler: %w", stopErr))
	}
	return err
}

func (a *app) newScheduler(s *stack) (*refresh.Scheduler, error) {
	scheduler := refresh.New(jwtgate.NewLogrusLogger(a.logger), a.cfg.JWKS.HTTPTimeout)

	if err := scheduler.Every(jobRefreshKeys, a.cfg.JWKS.RefreshSchedule, s.keys.Refresh); err != nil {
		return nil, err
	}
	if s.file != nil {
		reload := func(context.Context) error { return s.file.Reload() }
		if err := scheduler.Every(jobReloadRevocation, a.cfg.Revocation.ReloadSchedule, reload); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

func newRouter(s *stack, cfg config.ServerConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/authorize", func(c *gin.Context) {
		permission := c.GetHeader(cfg.PermissionHeader)
		claims, err := s.core.CheckAuthorization(c.Request.Context(), c.GetHeader("Authorization"), permission)
		if err != nil {
			jwtgate.DefaultErrorHandler(c.Writer, c.Request, err)
			c.Abort()
			return
		}
		c.Header(SubjectHeader, claims.Subject)
		c.Status(http.StatusOK)
	})

	r.GET("/introspect", jwtgin.RequirePermission(s.core, ""), func(c *gin.Context) {
		claims, err := jwtgin.GetClaims(c)
		if err != nil {
			_ = c.Error(err)
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, claims)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"keys":            len(s.keys.Keys()),
			"keys_fetched_at": s.keys.FetchedAt(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	return r
}
