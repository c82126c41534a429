package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryan-williams/nj-crashes/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored reconcile runs over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/runs/latest", func(w http.ResponseWriter, req *http.Request) {
			run, err := st.LatestRun(req.Context())
			if err != nil {
				serveError(w, err)
				return
			}
			if run == nil {
				http.Error(w, `{"error":"no runs recorded"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		r.Get("/runs/{id}/severity", func(w http.ResponseWriter, req *http.Request) {
			runID, err := resolveRun(req, st)
			if err != nil {
				serveError(w, err)
				return
			}
			counts, err := st.SeverityCounts(req.Context(), runID)
			if err != nil {
				serveError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, counts)
		})

		r.Get("/runs/{id}/density", func(w http.ResponseWriter, req *http.Request) {
			runID, err := resolveRun(req, st)
			if err != nil {
				serveError(w, err)
				return
			}
			limit := 1000
			if s := req.URL.Query().Get("limit"); s != "" {
				if n, err := strconv.Atoi(s); err == nil && n > 0 {
					limit = n
				}
			}
			rows, err := st.DensityRows(req.Context(), runID, limit)
			if err != nil {
				serveError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, rows)
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("serving", zap.Int("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// resolveRun maps the {id} path segment ("latest" or a run id) to a run id.
func resolveRun(req *http.Request, st *store.Store) (string, error) {
	id := chi.URLParam(req, "id")
	if id != "latest" {
		return id, nil
	}
	run, err := st.LatestRun(req.Context())
	if err != nil {
		return "", err
	}
	if run == nil {
		return "", errors.New("no runs recorded")
	}
	return run.ID, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func serveError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
