package events

import "time"

// TimerStartedPayload is the payload for a TimerStarted event
type TimerStartedPayload struct {
	Kind      string    `json:"kind"`
	Seconds   int       `json:"seconds"`
	StartedAt time.Time `json:"started_at"`
	EndsAt    time.Time `json:"ends_at"`
}

// TimerStoppedPayload is the payload for a TimerStopped event
type TimerStoppedPayload struct {
	Kind      string    `json:"kind"`
	Remaining int       `json:"remaining_sec"`
	StoppedAt time.Time `json:"stopped_at"`
	Reason    string    `json:"reason"`
}

// TimerThresholdPayload is the payload for a TimerThreshold event
type TimerThresholdPayload struct {
	Kind      string `json:"kind"`
	Remaining int    `json:"remaining_sec"`
	Text      string `json:"text"`
}

// TimerCompletedPayload is the payload for a TimerCompleted event
type TimerCompletedPayload struct {
	Kind        string    `json:"kind"`
	CompletedAt time.Time `json:"completed_at"`
}

// TimerResumedPayload is the payload for a TimerResumed event
type TimerResumedPayload struct {
	Kind      string    `json:"kind"`
	Remaining int       `json:"remaining_sec"`
	ResumedAt time.Time `json:"resumed_at"`
}

// PhaseChangedPayload is the payload for a PhaseChanged event
type PhaseChangedPayload struct {
	Started   bool      `json:"started"`
	ChangedAt time.Time `json:"changed_at"`
	Cause     string    `json:"cause"`
}
