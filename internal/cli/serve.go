package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dogao/order-service/internal/httpapi"
	"dogao/order-service/internal/realtime"
	"dogao/order-service/internal/scheduler"
	"dogao/order-service/internal/telemetry"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "order-service"

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the realtime board stream and the edition scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *RootOptions) error {
	cfg := opts.cfg
	shutdownTelemetry := telemetry.Setup(telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Endpoint:       cfg.OTelEndpoint,
		Insecure:       cfg.OTelInsecure,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := realtime.New()
	svc, err := newService(cfg, st, hub)
	if err != nil {
		return err
	}

	var auth *httpapi.Auth
	var verifier realtime.TokenVerifier
	if cfg.JWTSecret != "" {
		auth = httpapi.NewAuth(httpapi.AuthConfig{
			Username:     cfg.AdminUsername,
			PasswordHash: cfg.AdminPasswordHash,
			Secret:       cfg.JWTSecret,
			TTL:          cfg.SessionTTL,
		})
		verifier = auth
	}

	handler := httpapi.NewHandler(svc, httpapi.Options{
		Auth:     auth,
		Realtime: realtime.NewHandler(hub, verifier),
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:     cfg.RateLimitPerMinute,
		IPBurst:         cfg.RateLimitBurst,
		PublicPerMinute: cfg.PublicRateLimitPerMinute,
		PublicBurst:     cfg.PublicRateLimitBurst,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(handler.Routes())), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched, err = scheduler.New(svc, scheduler.Config{Interval: cfg.SchedulerInterval, Location: cfg.Location()})
		if err != nil {
			return err
		}
		sched.Start()
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("%s listening on %s store=%s", serviceName, server.Addr, cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			log.Printf("scheduler shutdown error: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	return nil
}
