// Command gateway is the Lifecycle Supervisor (C10): it brings the
// credential store, replay cache, ingress broker, and command HTTP
// server up in dependency order. On shutdown the command server finishes
// in-flight requests and the broker is closed; backend forwards still
// running are neither awaited nor cancelled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beacongate/iot-gateway/internal/backendclient"
	"github.com/beacongate/iot-gateway/internal/clock"
	"github.com/beacongate/iot-gateway/internal/command"
	"github.com/beacongate/iot-gateway/internal/config"
	"github.com/beacongate/iot-gateway/internal/devicestore"
	"github.com/beacongate/iot-gateway/internal/gateway"
	"github.com/beacongate/iot-gateway/internal/ingress"
	"github.com/beacongate/iot-gateway/internal/logging"
	"github.com/beacongate/iot-gateway/internal/middleware"
	"github.com/beacongate/iot-gateway/internal/replaycache"
	"github.com/beacongate/iot-gateway/internal/router"
	"github.com/beacongate/iot-gateway/internal/signer"
	"github.com/beacongate/iot-gateway/internal/validator"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).
		With(logging.Service("iot-gateway"))
	logging.SetDefault(logger)

	slog.Info("starting iot-gateway",
		slog.String("broker_addr", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port)),
		slog.String("command_addr", cfg.Command.ListenAddr),
		slog.String("backend_base_url", cfg.Backend.BaseURL),
	)

	// C1: load credentials.
	loader, err := devicestore.NewPostgresLoader(context.Background(), cfg.Credentials.DriverDSN)
	if err != nil {
		log.Fatalf("failed to connect to credential store: %v", err)
	}
	defer loader.Close()

	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := loader.Load(loadCtx)
	loadCancel()
	if err != nil {
		log.Fatalf("failed to load device credentials: %v", err)
	}
	slog.Info("credential store loaded", slog.Int("device_count", store.Len()))

	// C2: replay cache.
	cache := replaycache.New(cfg.Validation.ReplayCacheSize, 0)

	// C3/C4.
	clockSource := clock.Real{}
	sig := signer.New()

	// C5.
	msgValidator := validator.New(store, cache, clockSource, sig, cfg.Validation.SkewBudgetSeconds)

	// C7.
	backend := backendclient.New(cfg.Backend.BaseURL, cfg.Backend.HTTPTimeout)

	// C6: the broker needs its MessageHandler at construction time, but
	// that handler is the gateway's HandleInbound, and the gateway in
	// turn needs the broker as C8's Publisher. handleInbound is a thin
	// indirection that breaks the cycle: it's wired to the broker now
	// and redirected to the real gateway once that's built below.
	var handleInbound ingress.MessageHandler
	broker, err := ingress.New(ingress.Config{
		Host:     cfg.Broker.Host,
		Port:     cfg.Broker.Port,
		CAFile:   cfg.Broker.CAFile,
		CertFile: cfg.Broker.CertFile,
		KeyFile:  cfg.Broker.KeyFile,
	}, func(tlsIdentity string, raw []byte) { handleInbound(tlsIdentity, raw) })
	if err != nil {
		log.Fatalf("failed to configure ingress broker: %v", err)
	}

	// C8.
	respRouter := router.New(broker)

	gw := gateway.New(msgValidator, backend, respRouter, gateway.Config{
		MessageDeadline:   cfg.Validation.MessageDeadline,
		ForwardErrorBody:  cfg.Backend.ForwardErrorBody,
		SurfaceFailureAck: cfg.Backend.SurfaceFailureAck,
	}, logger)
	handleInbound = gw.HandleInbound

	if err := broker.Start(); err != nil {
		log.Fatalf("failed to start ingress broker: %v", err)
	}
	slog.Info("ingress broker listening", slog.String("addr", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port)))

	// C9: command ingress, sharing the same router/broker.
	cmdHandler := command.New(store, respRouter, sig, clockSource, cfg.Command.BearerToken, logger)

	mux := http.NewServeMux()
	cmdHandler.Register(mux)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(store))
	mux.Handle("GET /metrics", promhttp.Handler())

	cmdServer := &http.Server{
		Addr:         cfg.Command.ListenAddr,
		Handler:      middleware.RequestID(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("command server listening", slog.String("addr", cmdServer.Addr))
		if err := cmdServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("command server error: %v", err)
		}
	}()

	slog.Info("iot-gateway ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := cmdServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("command server forced shutdown", slog.Any("error", err))
	}
	if err := broker.Close(); err != nil {
		slog.Error("ingress broker close failed", slog.Any("error", err))
	}

	slog.Info("iot-gateway stopped")
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(store devicestore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store.Len() == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not_ready","reason":"no devices loaded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}
