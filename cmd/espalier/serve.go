package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/espalier"
	"github.com/aretw0/espalier/internal/demo"
	"github.com/aretw0/espalier/internal/logging"
	httpAdapter "github.com/aretw0/espalier/pkg/adapters/http"
	"github.com/aretw0/espalier/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the ArticlesLive demo controller behind the JSON API, with sessions persisted in the configured store.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, dir, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if port, _ := cmd.Flags().GetString("port"); cmd.Flags().Changed("port") {
			cfg.Addr = ":" + port
		}

		logger := logging.New(logging.ParseLevel(cfg.LogLevel))

		views, err := buildViews(cfg, dir)
		if err != nil {
			fmt.Printf("Error opening views: %v\n", err)
			os.Exit(1)
		}

		manager, err := buildManager(cfg)
		if err != nil {
			fmt.Printf("Error building session manager: %v\n", err)
			os.Exit(1)
		}

		var ctrlOpts []espalier.Option
		if cfg.Metrics.Enabled {
			metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
			ctrlOpts = append(ctrlOpts, espalier.WithLifecycleHooks(metrics.Hooks()))
		}

		ctrl, err := demo.NewController(views, logger, ctrlOpts...)
		if err != nil {
			fmt.Printf("Error building controller: %v\n", err)
			os.Exit(1)
		}

		mux := http.NewServeMux()
		mux.Handle("/", httpAdapter.NewHandler(ctrl, manager))
		if cfg.Metrics.Enabled {
			mux.Handle("/metrics", promhttp.Handler())
		}

		srv := &http.Server{
			Addr:    cfg.Addr,
			Handler: mux,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting Espalier Server on %s\n", srv.Addr)
			fmt.Printf("Serving controller: %s\n", ctrl.Name())
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Espalier Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on (overrides addr from config)")
}
