// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Command recordsyncd runs the record-sync engine: a command surface
// over pluggable source/sink/CRM adapters, with continuous pollers
// and a one-shot bulk-sync mode.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pratapdesai/record-sync/internal/api"
	"github.com/pratapdesai/record-sync/internal/config"
	"github.com/pratapdesai/record-sync/internal/lifecycle"
)

func buildMux(app *App) http.Handler {
	return api.NewMux(app.Surface)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.WithError(err).Fatal("recordsyncd exited with error")
	}
}

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:   "recordsyncd",
		Short: "recordsyncd synchronizes records between pluggable sources, sinks, and CRM destinations",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Preflight()
		},
	}
	cfg.Bind(root.PersistentFlags())

	root.AddCommand(newServeCommand(cfg))
	root.AddCommand(newSyncAllCommand(cfg))
	root.AddCommand(newPollCommand(cfg))

	return root
}

func newServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the command surface and every continuous poller until signaled to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}
}

func newSyncAllCommand(cfg *config.Config) *cobra.Command {
	var allowDuplicates bool
	cmd := &cobra.Command{
		Use:   "sync-all",
		Short: "run the one-shot bulk orchestrator once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := InitializeApp(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := app.Surface.TriggerBulkSync(cmd.Context(), allowDuplicates)
			if err != nil {
				return err
			}
			logrus.WithField("synced", n).Info("bulk sync complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&allowDuplicates, "allow-duplicates", false, "allow the sink to write records it already holds")
	return cmd
}

func newPollCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "poll [name]",
		Short: "run a single iteration of the named poller and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := InitializeApp(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			return app.Surface.TriggerPoll(cmd.Context(), args[0])
		},
	}
}

func runServe(cfg *config.Config) error {
	app, cleanup, err := InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group := lifecycle.WithContext(ctx)
	for _, p := range app.Surface.Pollers {
		p.Run(group)
	}

	mux := buildMux(app)
	server := &http.Server{Addr: cfg.BindAddr, Handler: mux}

	group.Go(func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logrus.WithField("addr", cfg.BindAddr).Info("recordsyncd listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	group.Stop(15 * time.Second)
	return nil
}
