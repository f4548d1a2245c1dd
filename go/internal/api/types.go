package api

import (
	"github.com/mcdev12/timing/go/internal/announcer"
	"github.com/mcdev12/timing/go/internal/orchestrator"
)

type StartTimerRequest struct {
	Seconds int `json:"seconds"`
}

type TimerResponse = orchestrator.TimerStatus

type TimersResponse struct {
	Timers []orchestrator.TimerStatus `json:"timers"`
}

// StatusResponse is the resolved discovery status. Text keeps the markup,
// Plain has it stripped.
type StatusResponse struct {
	Active  bool   `json:"active"`
	Text    string `json:"text,omitempty"`
	Plain   string `json:"plain,omitempty"`
	Started bool   `json:"started"`
}

type AdmissionRequest struct {
	Name string `json:"name"`
	UUID string `json:"uuid,omitempty"`
}

type AdmissionResponse struct {
	Admit   bool   `json:"admit"`
	Message string `json:"message,omitempty"`
}

// WhitelistRequest changes the whitelist. Restricted is left alone when nil.
type WhitelistRequest struct {
	Restricted *bool    `json:"restricted,omitempty"`
	Allow      []string `json:"allow,omitempty"`
	Revoke     []string `json:"revoke,omitempty"`
}

type WhitelistResponse struct {
	Restricted bool `json:"restricted"`
}

type CommandRequest struct {
	Command string `json:"command"`
}

type CommandResponse struct {
	Feedback string `json:"feedback"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type AnnouncementsResponse struct {
	Announcements []announcer.Announcement `json:"announcements"`
}
