package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/renderinc/review-queue/internal/ingest"
	"github.com/renderinc/review-queue/internal/metrics"
	"github.com/renderinc/review-queue/internal/review"
	"github.com/renderinc/review-queue/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the review API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.ListenAddr
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			// Search is optional; the queue works without it.
			idx, err := a.openIndex()
			if err != nil {
				a.logger.Warn("Knowledge search disabled", zap.Error(err))
				idx = nil
			} else {
				defer idx.Close()
			}

			m := metrics.New()
			svc, err := a.newService(db, idx, m)
			if err != nil {
				return err
			}

			server, err := web.NewServer(web.Config{
				Service:        svc,
				DB:             db,
				Index:          idx,
				Metrics:        m.Handler(),
				AllowedOrigins: a.cfg.AllowedOrigins,
				Logger:         a.logger,
			})
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      15 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Review API listening",
					zap.String("addr", "http://"+addr),
					zap.String("policy", svc.Policy().Name()))
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

			a.logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides REVIEW_LISTEN_ADDR)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import raw source documents from JSON array or JSON Lines files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			importer := ingest.NewImporter(db, a.logger)
			for _, path := range args {
				stats, err := importer.ImportFile(cmd.Context(), path)
				if err != nil {
					return err
				}

				printf(cmd, "=== Import Complete: %s ===\n", path)
				printf(cmd, "Documents:     %d\n", stats.Total)
				printf(cmd, "Imported:      %d\n", stats.Imported)
				printf(cmd, "Pre-decided:   %d\n", stats.Decided)
				printf(cmd, "Skipped:       %d\n", stats.Skipped)
				printf(cmd, "Errors:        %d\n", stats.Errors)
				printf(cmd, "Duration:      %v\n", stats.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show decision statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			svc, err := a.newService(db, nil, nil)
			if err != nil {
				return err
			}
			snap, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}

			printf(cmd, "=== Review Statistics ===\n")
			if f := svc.Filter(); f.Enabled() {
				printf(cmd, "Scope:         %s = %s\n", f.Key, f.Value)
			}
			printf(cmd, "Sources:       %d\n", snap.Total)
			printf(cmd, "Undecided:     %d\n", snap.Undecided)
			printf(cmd, "Accepted:      %d\n", snap.Accepted)
			printf(cmd, "Rejected:      %d\n", snap.Rejected)
			printf(cmd, "Knowledge:     %d\n", snap.Derived)
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a source record as the queue sees it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			svc, err := a.newService(db, nil, nil)
			if err != nil {
				return err
			}
			src, err := svc.Get(cmd.Context(), args[0])
			if errors.Is(err, review.ErrNotFound) {
				return fmt.Errorf("source not found: %s", args[0])
			}
			if err != nil {
				return err
			}

			view := svc.View(src)
			printf(cmd, "ID:         %s\n", view.ID)
			printf(cmd, "Source ID:  %s\n", deref(view.SourceID))
			printf(cmd, "Title:      %s\n", deref(view.Title))
			printf(cmd, "Created:    %s\n", deref(view.CreatedAt))
			printf(cmd, "Updated:    %s\n", deref(view.UpdatedAt))
			if src.Decided() {
				printf(cmd, "Decision:   %s at %s\n", src.Decision, src.DecidedAt.Format(time.RFC3339))
			} else {
				printf(cmd, "Decision:   (undecided)\n")
			}
			printf(cmd, "\n%s\n", deref(view.Content))
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search accepted knowledge records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := a.openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			query := strings.Join(args, " ")
			results, err := idx.Search(query, limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				printf(cmd, "No results found\n")
				return nil
			}

			printf(cmd, "\nFound %d results:\n\n", len(results))
			for i, result := range results {
				printf(cmd, "%d. %s\n", i+1, result.Question)
				printf(cmd, "   Source: %s\n", result.SourceRawID)
				printf(cmd, "   Score: %.3f\n\n", result.Score)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results")
	return cmd
}

func newReindexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the knowledge search index from storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			idx, err := a.openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			startTime := time.Now()
			progressFn := func(current, total int) {
				percent := float64(current) / float64(total) * 100
				printf(cmd, "\rIndexing: %d/%d (%.1f%%)  ", current, total, percent)
			}
			if err := idx.Rebuild(cmd.Context(), db, progressFn); err != nil {
				return fmt.Errorf("rebuild index: %w", err)
			}

			count, err := idx.Count()
			if err != nil {
				return fmt.Errorf("count index: %w", err)
			}

			printf(cmd, "\n\n=== Reindex Complete ===\n")
			printf(cmd, "Records indexed: %d\n", count)
			printf(cmd, "Duration:        %v\n", time.Since(startTime).Round(time.Millisecond))
			return nil
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
