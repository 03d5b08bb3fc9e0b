package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"hospital-booking-api/internal/app"
	"hospital-booking-api/internal/config"
	"hospital-booking-api/internal/grpchealth"
	"hospital-booking-api/internal/handler"
	"hospital-booking-api/internal/logging"
	"hospital-booking-api/internal/middleware"
	"hospital-booking-api/internal/notify"
	"hospital-booking-api/internal/service"
)

func main() {
	os.Exit(run())
}

// run returns the exit code; every path after the store opens leaves
// through the deferred closes.
func run() int {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Errorf("config: %v", err)
		return 1
	}
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()

	// storage
	st, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Errorf("store: %v", err)
		return 1
	}
	defer st.Close()

	doctors, closeCache := app.DoctorStore(st, cfg, log)
	defer closeCache()

	// notifications
	sender, err := app.NewSender(ctx, cfg, log)
	if err != nil {
		log.Errorf("notifier: %v", err)
		return 1
	}
	defer sender.Close()
	dispatcher := notify.NewDispatcher(sender, cfg.HospitalName, cfg.NotifyTimeout, log)

	authLimiter := middleware.NewRateLimiter(cfg.RateLimitAuthRPS, cfg.RateLimitAuthBurst)
	defer authLimiter.Stop()

	h := handler.New(
		service.NewAccounts(st, log),
		service.NewDirectory(doctors),
		service.NewBooking(st, doctors, st, dispatcher, log),
		log,
		handler.Options{
			ServiceName:    cfg.ServiceName,
			HospitalName:   cfg.HospitalName,
			StorageName:    st.Name(),
			JWTSecret:      cfg.JWTSecret,
			JWTTTL:         cfg.JWTTTL,
			AuthLimiter:    authLimiter,
			TrustedProxies: cfg.TrustedProxies,
		},
	)

	// grpc health
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Errorf("listen: %v", err)
		return 1
	}
	hs := grpchealth.New(st, 15*time.Second, log)

	// a listener that stops on its own triggers the same shutdown as a signal
	serveErr := make(chan error, 2)
	go func() {
		log.Infof("grpc health on :%s", cfg.GRPCPort)
		if err := hs.Serve(lis); err != nil {
			serveErr <- fmt.Errorf("grpc: %w", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("http on :%s (storage=%s, notifier=%s)", cfg.Port, st.Name(), cfg.Notifier)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http: %w", err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	exitCode := waitForStop(ch, serveErr, log)

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	hs.Stop()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("notifications still in flight at shutdown")
	}
	return exitCode
}

// waitForStop blocks until a signal arrives or a server fails and returns
// the exit code for the shutdown that follows.
func waitForStop(sigs <-chan os.Signal, serveErr <-chan error, log *logrus.Logger) int {
	select {
	case sig := <-sigs:
		log.WithField("signal", sig.String()).Info("shutting down")
		return 0
	case err := <-serveErr:
		log.WithError(err).Error("server stopped, shutting down")
		return 1
	}
}
