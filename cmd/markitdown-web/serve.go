// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nicholasgasior/markitdown-web/internal/artifact"
	"github.com/nicholasgasior/markitdown-web/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload page and conversion API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, processor, err := setup(os.Stdout)
		if err != nil {
			return err
		}

		store := artifact.NewStore(
			artifact.WithTTL(cfg.Artifacts.TTL),
			artifact.WithMaxEntries(cfg.Artifacts.MaxEntries),
		)
		srv, err := server.New(server.Options{
			Processor:   processor,
			Store:       store,
			Logger:      logger,
			Version:     version,
			BodyLimit:   cfg.Server.BodyLimit,
			CORSOrigins: cfg.Server.CORSOrigins,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go store.Run(ctx, cfg.Artifacts.SweepInterval, func(removed int) {
			if removed > 0 {
				logger.Debug("expired artifacts swept", "removed", removed, "remaining", store.Len())
			}
		})

		httpServer := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      srv.Handler(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", "addr", cfg.Server.Addr, "version", version)
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("body-limit", "64M", "maximum request body size (e.g. 64M)")
	serveCmd.Flags().StringSlice("cors-origins", nil, "allowed CORS origins")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.body_limit", serveCmd.Flags().Lookup("body-limit"))
	_ = viper.BindPFlag("server.cors_origins", serveCmd.Flags().Lookup("cors-origins"))

	rootCmd.AddCommand(serveCmd)
}
