package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-group/orgclassify/internal/model"
	"github.com/meridian-group/orgclassify/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/records", func(w http.ResponseWriter, req *http.Request) {
			filter := store.RecordFilter{
				Status: model.StageStatus(req.URL.Query().Get("status")),
			}
			if v := req.URL.Query().Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid limit")
					return
				}
				filter.Limit = n
			}
			records, err := e.Store.ListRecords(req.Context(), filter)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "list records failed")
				return
			}
			writeJSON(w, http.StatusOK, records)
		})

		r.Get("/api/records/{name}", func(w http.ResponseWriter, req *http.Request) {
			rec, err := e.Registry.Get(req.Context(), chi.URLParam(req, "name"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "get record failed")
				return
			}
			if rec == nil {
				writeError(w, http.StatusNotFound, "record not found")
				return
			}
			writeJSON(w, http.StatusOK, rec)
		})

		r.Get("/api/summary", func(w http.ResponseWriter, req *http.Request) {
			summary, err := e.Registry.Summary(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, "summary failed")
				return
			}
			writeJSON(w, http.StatusOK, summary)
		})

		r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
			runs, err := e.Store.ListRuns(req.Context(), 20)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "list runs failed")
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/api/breakers", func(w http.ResponseWriter, req *http.Request) {
			states := make(map[string]string)
			for backend, state := range e.Waterfall.BreakerStates() {
				states[backend] = state.String()
			}
			writeJSON(w, http.StatusOK, states)
		})

		r.Post("/api/records/{name}/retry", func(w http.ResponseWriter, req *http.Request) {
			name := chi.URLParam(req, "name")

			// Reprocess in the background against the server context so the
			// work survives the request.
			go func() {
				rec, err := e.Runner.Retry(ctx, name)
				if err != nil {
					zap.L().Error("api retry failed",
						zap.String("organization", name),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("api retry complete",
					zap.String("organization", name),
					zap.String("status", string(rec.StageStatus)),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":       "accepted",
				"organization": name,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
