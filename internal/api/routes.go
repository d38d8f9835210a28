package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keagan/capforge/internal/clips"
	"github.com/keagan/capforge/internal/media"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.ExportContext == nil {
		cfg.ExportContext = context.Background()
	}
	logger := cfg.Logger.With().Str("component", "api").Logger()

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/project", projectHandler(cfg))
	r.Get("/status", statusHandler(cfg))

	r.Route("/clips", func(r chi.Router) {
		r.Post("/", addClipHandler(cfg))
		r.Delete("/{index}", removeClipHandler(cfg))
		r.Put("/{index}", updateClipHandler(cfg))
		r.Post("/{index}/move", moveClipHandler(cfg))
	})

	r.Put("/music", musicHandler(cfg))
	r.Put("/render", renderHandler(cfg))
	r.Post("/export", exportHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func projectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Editor.Project())
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Editor.Status())
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if !decode(w, r, &req) {
			return
		}
		index, err := cfg.Editor.AddClip(req.Path)
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, IndexResponse{Index: index})
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := indexParam(w, r)
		if !ok {
			return
		}
		if err := cfg.Editor.RemoveClip(index); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func moveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := indexParam(w, r)
		if !ok {
			return
		}
		var req MoveClipRequest
		if !decode(w, r, &req) {
			return
		}
		to, err := cfg.Editor.MoveClip(index, req.Delta)
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, IndexResponse{Index: to})
	}
}

func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := indexParam(w, r)
		if !ok {
			return
		}
		var spec clips.Spec
		if !decode(w, r, &spec) {
			return
		}
		stored, err := cfg.Editor.UpdateClip(index, spec)
		if err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, stored)
	}
}

func musicHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MusicRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Gain != nil {
			if err := cfg.Editor.SetMusicGain(*req.Gain); err != nil {
				writeErr(w, err)
				return
			}
		}
		if req.Path != nil {
			cfg.Editor.SetBackgroundMusic(*req.Path)
		}
		WriteJSON(w, http.StatusOK, cfg.Editor.Project().Audio)
	}
}

func renderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := cfg.Editor.Project().Render
		if !decode(w, r, &rc) {
			return
		}
		if err := cfg.Editor.SetRenderConfig(rc); err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, rc)
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if !decode(w, r, &req) {
			return
		}
		p := cfg.Editor.Project()
		if p.Len() == 0 {
			writeErr(w, media.ErrEmptyTimeline)
			return
		}
		if req.Output == "" && p.Output == "" {
			WriteError(w, http.StatusBadRequest, "output path is required", "BAD_REQUEST")
			return
		}
		if err := cfg.Editor.Start(cfg.ExportContext, req.Output); err != nil {
			writeErr(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, cfg.Editor.Status())
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "BAD_REQUEST")
		return false
	}
	return true
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "clip index must be an integer", "INVALID_INDEX")
		return 0, false
	}
	return index, true
}
