// Package api exposes the countdown commands and hooks over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/announcer"
	"github.com/mcdev12/timing/go/internal/countdown"
	"github.com/mcdev12/timing/go/internal/orchestrator"
	"github.com/mcdev12/timing/go/internal/resolver"
	"github.com/mcdev12/timing/go/internal/textfmt"
)

const maxBodyBytes = 1 << 16

// Controller is the orchestrator surface the API drives.
type Controller interface {
	StartTimer(kind countdown.Kind, seconds int) error
	StopTimer(kind countdown.Kind) error
	TimerStatus(kind countdown.Kind) (orchestrator.TimerStatus, error)
	TimerStatuses() []orchestrator.TimerStatus
	ResolveStatus() (string, bool)
	ResolveAdmission(id resolver.Identity) resolver.Decision
	Started() bool
	Execute(cmd orchestrator.Command) (string, error)
}

// Whitelist is the access-list surface the API drives.
type Whitelist interface {
	Restricted() bool
	SetRestricted(restricted bool)
	Allow(name string)
	Revoke(name string)
}

// Announcements lists and triggers configured announcements.
type Announcements interface {
	Announcements() []announcer.Announcement
	Broadcast(name string) error
}

type Handler struct {
	ctl           Controller
	whitelist     Whitelist
	announcements Announcements
}

func NewHandler(ctl Controller, whitelist Whitelist) *Handler {
	return &Handler{ctl: ctl, whitelist: whitelist}
}

// WithAnnouncer enables the announcement routes.
func (h *Handler) WithAnnouncer(a Announcements) *Handler {
	h.announcements = a
	return h
}

// Register adds every route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/timers/{kind}/start", h.handleStartTimer)
	mux.HandleFunc("POST /v1/timers/{kind}/stop", h.handleStopTimer)
	mux.HandleFunc("GET /v1/timers/{kind}", h.handleGetTimer)
	mux.HandleFunc("GET /v1/timers", h.handleListTimers)
	mux.HandleFunc("GET /v1/status", h.handleStatus)
	mux.HandleFunc("POST /v1/admission", h.handleAdmission)
	mux.HandleFunc("GET /v1/whitelist", h.handleGetWhitelist)
	mux.HandleFunc("POST /v1/whitelist", h.handleSetWhitelist)
	mux.HandleFunc("POST /v1/commands", h.handleCommand)
	if h.announcements != nil {
		mux.HandleFunc("GET /v1/announcements", h.handleListAnnouncements)
		mux.HandleFunc("POST /v1/announcements/{name}/broadcast", h.handleBroadcastAnnouncement)
	}
}

func (h *Handler) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	kind, err := countdown.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req StartTimerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.ctl.StartTimer(kind, req.Seconds); err != nil {
		writeError(w, err)
		return
	}
	h.writeTimer(w, kind)
}

func (h *Handler) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	kind, err := countdown.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.ctl.StopTimer(kind); err != nil {
		writeError(w, err)
		return
	}
	h.writeTimer(w, kind)
}

func (h *Handler) handleGetTimer(w http.ResponseWriter, r *http.Request) {
	kind, err := countdown.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeTimer(w, kind)
}

func (h *Handler) writeTimer(w http.ResponseWriter, kind countdown.Kind) {
	status, err := h.ctl.TimerStatus(kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleListTimers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TimersResponse{Timers: h.ctl.TimerStatuses()})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	text, ok := h.ctl.ResolveStatus()
	resp := StatusResponse{Active: ok, Started: h.ctl.Started()}
	if ok {
		resp.Text = text
		resp.Plain = textfmt.Plain(text)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAdmission(w http.ResponseWriter, r *http.Request) {
	var req AdmissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, fmt.Errorf("%w: name is required", errBadRequest))
		return
	}
	id := resolver.Identity{Name: req.Name}
	if req.UUID != "" {
		parsed, err := uuid.Parse(req.UUID)
		if err != nil {
			writeError(w, fmt.Errorf("%w: uuid: %w", errBadRequest, err))
			return
		}
		id.UUID = parsed
	}

	decision := h.ctl.ResolveAdmission(id)
	writeJSON(w, http.StatusOK, AdmissionResponse{Admit: decision.Admit, Message: decision.Message})
}

func (h *Handler) handleGetWhitelist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, WhitelistResponse{Restricted: h.whitelist.Restricted()})
}

func (h *Handler) handleSetWhitelist(w http.ResponseWriter, r *http.Request) {
	var req WhitelistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	for _, name := range req.Allow {
		h.whitelist.Allow(name)
	}
	for _, name := range req.Revoke {
		h.whitelist.Revoke(name)
	}
	if req.Restricted != nil {
		h.whitelist.SetRestricted(*req.Restricted)
	}
	writeJSON(w, http.StatusOK, WhitelistResponse{Restricted: h.whitelist.Restricted()})
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	cmd, err := orchestrator.ParseCommand(req.Command)
	if err != nil {
		writeError(w, err)
		return
	}
	feedback, err := h.ctl.Execute(cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Feedback: feedback})
}

func (h *Handler) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AnnouncementsResponse{Announcements: h.announcements.Announcements()})
}

func (h *Handler) handleBroadcastAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := h.announcements.Broadcast(r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var errBadRequest = errors.New("bad request")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, countdown.ErrUnknownKind),
		errors.Is(err, announcer.ErrUnknownAnnouncement):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, countdown.ErrInvalidDuration),
		errors.Is(err, orchestrator.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrTimerNotRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("api request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
