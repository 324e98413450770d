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
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/irs990-cli/internal/export"
	"github.com/sells-group/irs990-cli/internal/flatten"
	"github.com/sells-group/irs990-cli/internal/ids"
	"github.com/sells-group/irs990-cli/internal/model"
	"github.com/sells-group/irs990-cli/internal/monitoring"
	"github.com/sells-group/irs990-cli/internal/store"
	"github.com/sells-group/irs990-cli/pkg/propublica"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve cached records and exports over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the read-only API onto a chi router.
func buildRouter(env *appEnv, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	h := &orgHandler{env: env}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/orgs", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{ein}", h.get)
		r.Get("/{ein}/rows", h.rows)
	})
	r.Get("/export", h.export)

	return r
}

// requestLogger logs each request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type orgHandler struct {
	env *appEnv
}

func (h *orgHandler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := cachedEntries(r.Context(), h.env.Store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": entries})
}

// record loads the cached record, refreshing it when ?refresh or ?force is
// set. The X-Cache header reports hit, stale, or refreshed.
func (h *orgHandler) record(w http.ResponseWriter, r *http.Request) (*model.Record, bool) {
	ein := model.NormalizeEIN(chi.URLParam(r, "ein"))
	if !ids.ValidEIN(ein) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ein must be digits only"})
		return nil, false
	}
	force := queryBool(r, "force")

	if !force && !queryBool(r, "refresh") {
		rec, err := h.env.Store.Load(r.Context(), ein)
		if store.IsMiss(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not cached", "ein": ein})
			return nil, false
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return nil, false
		}
		w.Header().Set("X-Cache", "hit")
		return rec, true
	}

	out, err := h.env.Refresher.Refresh(r.Context(), ein, force)
	if err != nil {
		status := http.StatusBadGateway
		if propublica.IsNotFound(err) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return nil, false
	}
	switch {
	case out.Stale:
		w.Header().Set("X-Cache", "stale")
	case out.Overwrote:
		w.Header().Set("X-Cache", "refreshed")
	default:
		w.Header().Set("X-Cache", "hit")
	}
	return out.Record, true
}

func (h *orgHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.record(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *orgHandler) rows(w http.ResponseWriter, r *http.Request) {
	opts := h.exportOptions(r)
	fm, err := h.env.Mapper.Resolve(opts.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, ok := h.record(w, r)
	if !ok {
		return
	}

	ein := model.NormalizeEIN(chi.URLParam(r, "ein"))
	rows, err := h.env.exporter(opts).Rows(rec, fm, ein)
	if err != nil && !errors.Is(err, flatten.ErrNoFilings) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []flatten.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"header": flatten.Header(fm, flatten.Options{IncludeLocation: opts.IncludeLocation}),
		"rows":   rows,
	})
}

func (h *orgHandler) export(w http.ResponseWriter, r *http.Request) {
	entries, err := ids.FromArgs(r.URL.Query()["ein"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one ein is required"})
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = cfg.Export.Format
	}
	if format != export.FormatCSV && format != export.FormatXLSX {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "format must be csv or xlsx"})
		return
	}

	opts := h.exportOptions(r)
	opts.Force = queryBool(r, "force")
	report, err := h.env.exporter(opts).Run(r.Context(), entries)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if format == export.FormatXLSX {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	} else {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="irs990-%s.%s"`, report.RunID, format))
	w.Header().Set("X-Run-ID", report.RunID)
	if err := export.Write(w, format, report); err != nil {
		zap.L().Error("export response failed", zap.String("run_id", report.RunID), zap.Error(err))
	}
	h.env.Alerter.Check(r.Context(), monitoring.Summarize(report.RunID, "serve export", report.Results))
}

// exportOptions reads mode and latest from the query, defaulting to config.
func (h *orgHandler) exportOptions(r *http.Request) export.Options {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = cfg.Export.Mode
	}
	return export.Options{
		Mode:            mode,
		IncludeLocation: cfg.Export.IncludeLocation,
		TitleCase:       cfg.Export.TitleCase,
		LatestOnly:      queryBool(r, "latest"),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
