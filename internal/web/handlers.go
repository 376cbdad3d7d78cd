package web

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jaminalder/tic-tac-toe-history/internal/app"
)

type handlers struct {
	svc       *app.Service
	tpl       *templates
	log       *slog.Logger
	heartbeat time.Duration
}

func (h *handlers) writeHTML(w http.ResponseWriter, status int, t *template.Template, data any) {
	body, err := renderTemplate(t, data)
	if err != nil {
		h.log.Error("render template", slog.String("error", err.Error()))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// broadcast renders the fragment pushed to watchers.
func (h *handlers) broadcast(gs app.GameState) []byte {
	body, err := renderTemplate(h.tpl.board, newBoardData(&gs, "", ""))
	if err != nil {
		h.log.Error("render broadcast", slog.String("game_id", gs.ID), slog.String("error", err.Error()))
		return nil
	}
	return body
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	h.writeHTML(w, http.StatusOK, h.tpl.index, nil)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	pid := ensurePlayerCookie(w, r)
	gs, err := h.svc.CreateGame(r.Context(), pid)
	if err != nil {
		h.log.Error("create game", slog.String("error", err.Error()))
		http.Error(w, "failed to create", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/game/"+gs.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	gs, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeHTML(w, http.StatusOK, h.tpl.game, newBoardData(gs, pid, ""))
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
	cell, err := formInt(r, "cell")
	if err != nil {
		h.badInput(w, r, "Invalid cell")
		return
	}
	h.mutate(w, r, func(id, pid string) (*app.GameState, error) {
		return h.svc.Play(r.Context(), id, pid, cell)
	})
}

func (h *handlers) jump(w http.ResponseWriter, r *http.Request) {
	move, err := formInt(r, "move")
	if err != nil {
		h.badInput(w, r, "Invalid move")
		return
	}
	h.mutate(w, r, func(id, pid string) (*app.GameState, error) {
		return h.svc.Jump(r.Context(), id, pid, move)
	})
}

func (h *handlers) toggle(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(id, pid string) (*app.GameState, error) {
		return h.svc.Toggle(r.Context(), id, pid)
	})
}

// remove deletes the caller's game and sends the browser back to the index.
func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	if err := h.svc.Delete(r.Context(), id, pid); err != nil {
		h.fail(w, r, err)
		return
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// mutate runs op for the caller and answers with the game fragment for
// htmx requests or a redirect back to the game page for plain forms.
func (h *handlers) mutate(w http.ResponseWriter, r *http.Request, op func(id, pid string) (*app.GameState, error)) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	gs, err := op(id, pid)
	if err != nil && gs == nil {
		h.fail(w, r, err)
		return
	}
	status, errMsg := http.StatusOK, ""
	if err != nil {
		status, errMsg = statusFor(err)
	}
	if r.Header.Get("HX-Request") != "true" && err == nil {
		http.Redirect(w, r, "/game/"+id, http.StatusSeeOther)
		return
	}
	h.writeHTML(w, status, h.tpl.board, newBoardData(gs, pid, errMsg))
}

// badInput answers a request whose form could not be parsed, showing the
// unchanged game when it exists.
func (h *handlers) badInput(w http.ResponseWriter, r *http.Request, msg string) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	gs, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeHTML(w, http.StatusBadRequest, h.tpl.board, newBoardData(gs, pid, msg))
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	http.Error(w, msg, status)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, "Game not found"
	case errors.Is(err, app.ErrNotOwner):
		return http.StatusForbidden, "You are watching this game"
	case errors.Is(err, app.ErrInvalidCell):
		return http.StatusBadRequest, "Invalid cell"
	case errors.Is(err, app.ErrMoveOutOfRange):
		return http.StatusBadRequest, "Invalid move"
	default:
		return http.StatusInternalServerError, "Something went wrong"
	}
}

func formInt(r *http.Request, key string) (int, error) {
	if err := r.ParseForm(); err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(r.Form.Get(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// In tests or non-EventSource requests, just acknowledge headers and return
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, unsub := h.svc.Subscribe(ctx, id)
	defer unsub()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			_, _ = io.WriteString(w, "event: board\n")
			// a bare newline inside a data field would end the event early
			for _, line := range bytes.Split(b, []byte("\n")) {
				_, _ = fmt.Fprintf(w, "data: %s\n", line)
			}
			_, _ = io.WriteString(w, "\n")
			flusher.Flush()
		}
	}
}
