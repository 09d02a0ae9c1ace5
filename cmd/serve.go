package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/nyc311-cli/internal/model"
	"github.com/sells-group/nyc311-cli/internal/report"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Task, env.Reports, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// reportRunner runs a range report.
type reportRunner interface {
	Run(ctx context.Context, w model.Window) (*report.Result, error)
}

// reportReader reads persisted reports.
type reportReader interface {
	Done(ctx context.Context, w model.Window) (bool, error)
	ReadReport(ctx context.Context, w model.Window) ([]model.StatRow, error)
}

type reportRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
	TopN  int    `json:"top_n"`
}

func (r reportRequest) window() (model.Window, error) {
	start, err := model.ParseDay(r.Start)
	if err != nil {
		return model.Window{}, err
	}
	end, err := model.ParseDay(r.End)
	if err != nil {
		return model.Window{}, err
	}
	w := model.NewWindow(start, end, r.TopN)
	return w, w.Validate()
}

type reportResponse struct {
	Window  model.Window    `json:"window"`
	RunID   string          `json:"run_id,omitempty"`
	Skipped bool            `json:"skipped"`
	Dropped []string        `json:"dropped,omitempty"`
	Rows    []model.StatRow `json:"rows"`
}

// buildRouter wires the HTTP API. Concurrent requests for the same window
// share one run.
func buildRouter(runner reportRunner, reader reportReader, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	var inflight singleflight.Group

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/reports", func(w http.ResponseWriter, req *http.Request) {
		var body reportRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		win, err := body.window()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		v, err, _ := inflight.Do(win.String(), func() (any, error) {
			return runner.Run(context.WithoutCancel(req.Context()), win)
		})
		if err != nil {
			zap.L().Error("report request failed", zap.Stringer("window", win), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		res := v.(*report.Result)

		rows := res.Rows
		if res.Skipped {
			if rows, err = reader.ReadReport(req.Context(), win); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, reportResponse{
			Window:  res.Window,
			RunID:   res.RunID,
			Skipped: res.Skipped,
			Dropped: res.Dropped,
			Rows:    rows,
		})
	})

	r.Get("/reports", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		topN, err := strconv.Atoi(q.Get("top_n"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "top_n must be an integer")
			return
		}
		win, err := reportRequest{Start: q.Get("start"), End: q.Get("end"), TopN: topN}.window()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		done, err := reader.Done(req.Context(), win)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !done {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		rows, err := reader.ReadReport(req.Context(), win)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, reportResponse{Window: win, Rows: rows})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
