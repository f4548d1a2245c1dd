package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mcdev12/timing/go/internal/access"
	"github.com/mcdev12/timing/go/internal/announcer"
	"github.com/mcdev12/timing/go/internal/countdown"
	"github.com/mcdev12/timing/go/internal/countdown/countdowntest"
	"github.com/mcdev12/timing/go/internal/orchestrator"
	"github.com/mcdev12/timing/go/internal/phase"
)

type testServer struct {
	server    *httptest.Server
	whitelist *access.List
	orch      *orchestrator.Orchestrator
	token     string
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()
	whitelist := access.NewList([]string{"notch"}, nil, true)
	orch := orchestrator.New(orchestrator.DefaultConfig(), orchestrator.Deps{
		Scheduler:  countdowntest.NewManualScheduler(),
		Phase:      phase.NewState(phase.NewMemoryStore(phase.Record{})),
		Whitelist:  whitelist,
		Privileges: whitelist,
	})
	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	srv := NewServer(ServerConfig{Token: token}, NewHandler(orch, whitelist), nil)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return &testServer{server: ts, whitelist: whitelist, orch: orch, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestStartAndStopTimer(t *testing.T) {
	s := newTestServer(t, "")

	var started TimerResponse
	if code := s.do(t, http.MethodPost, "/v1/timers/beginning/start", StartTimerRequest{Seconds: 90}, &started); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !started.Running || started.Remaining != 90 || started.Formatted != "1m 30s" {
		t.Errorf("unexpected timer %+v", started)
	}

	var stopped TimerResponse
	if code := s.do(t, http.MethodPost, "/v1/timers/beginning/stop", nil, &stopped); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if stopped.Running {
		t.Errorf("expected stopped timer, got %+v", stopped)
	}

	var errResp ErrorResponse
	if code := s.do(t, http.MethodPost, "/v1/timers/beginning/stop", nil, &errResp); code != http.StatusConflict {
		t.Fatalf("expected 409 stopping an idle timer, got %d", code)
	}
}

func TestStartTimerValidation(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"unknown kind", "/v1/timers/nether/start", StartTimerRequest{Seconds: 10}, http.StatusNotFound},
		{"zero seconds", "/v1/timers/restart/start", StartTimerRequest{Seconds: 0}, http.StatusBadRequest},
		{"negative seconds", "/v1/timers/end/start", StartTimerRequest{Seconds: -5}, http.StatusBadRequest},
		{"unknown field", "/v1/timers/end/start", map[string]int{"minutes": 5}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp ErrorResponse
			if code := s.do(t, http.MethodPost, tt.path, tt.body, &errResp); code != tt.want {
				t.Errorf("expected %d, got %d (%s)", tt.want, code, errResp.Error)
			}
			if errResp.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestListTimers(t *testing.T) {
	s := newTestServer(t, "")
	if err := s.orch.StartTimer(countdown.KindEnd, 30); err != nil {
		t.Fatalf("StartTimer: %v", err)
	}

	var resp TimersResponse
	s.do(t, http.MethodGet, "/v1/timers", nil, &resp)
	if len(resp.Timers) != 3 {
		t.Fatalf("expected 3 timers, got %d", len(resp.Timers))
	}
	end := resp.Timers[2]
	if end.Kind != "end" || !end.Running || end.Started == nil || *end.Started {
		t.Errorf("unexpected end timer %+v", end)
	}
}

func TestStatusReflectsRunningCountdown(t *testing.T) {
	s := newTestServer(t, "")

	var idle StatusResponse
	s.do(t, http.MethodGet, "/v1/status", nil, &idle)
	if !idle.Active || idle.Started || idle.Plain != "My Server\nWelcome to the server!" {
		t.Errorf("expected the default status before any countdown, got %+v", idle)
	}

	s.do(t, http.MethodPost, "/v1/timers/beginning/start", StartTimerRequest{Seconds: 60}, nil)

	var running StatusResponse
	s.do(t, http.MethodGet, "/v1/status", nil, &running)
	if !running.Active {
		t.Fatal("expected an active status override")
	}
	if running.Plain != "Server Starting\nStarting in: 1m 0s" {
		t.Errorf("unexpected plain status %q", running.Plain)
	}
	if !strings.Contains(running.Text, "<bold>") {
		t.Errorf("expected markup to be kept in text, got %q", running.Text)
	}
}

func TestAdmission(t *testing.T) {
	s := newTestServer(t, "")
	s.do(t, http.MethodPost, "/v1/timers/beginning/start", StartTimerRequest{Seconds: 60}, nil)

	var rejected AdmissionResponse
	s.do(t, http.MethodPost, "/v1/admission", AdmissionRequest{Name: "Steve"}, &rejected)
	if rejected.Admit || !strings.Contains(rejected.Message, "1m 0s") {
		t.Errorf("expected rejection with remaining time, got %+v", rejected)
	}

	var operator AdmissionResponse
	s.do(t, http.MethodPost, "/v1/admission", AdmissionRequest{Name: "Notch"}, &operator)
	if !operator.Admit {
		t.Errorf("expected operator to bypass, got %+v", operator)
	}

	if code := s.do(t, http.MethodPost, "/v1/admission", AdmissionRequest{Name: "Steve", UUID: "nope"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad uuid, got %d", code)
	}
	if code := s.do(t, http.MethodPost, "/v1/admission", AdmissionRequest{}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 without a name, got %d", code)
	}
}

func TestWhitelist(t *testing.T) {
	s := newTestServer(t, "")

	off := false
	var resp WhitelistResponse
	s.do(t, http.MethodPost, "/v1/whitelist", WhitelistRequest{Restricted: &off, Allow: []string{"Alex"}}, &resp)
	if resp.Restricted || s.whitelist.Restricted() {
		t.Error("expected whitelist to be lifted")
	}

	s.do(t, http.MethodGet, "/v1/whitelist", nil, &resp)
	if resp.Restricted {
		t.Error("expected GET to report the lifted whitelist")
	}
}

func TestCommand(t *testing.T) {
	s := newTestServer(t, "")

	var resp CommandResponse
	if code := s.do(t, http.MethodPost, "/v1/commands", CommandRequest{Command: "start end 90"}, &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Feedback != "The End countdown started: 1m 30s" {
		t.Errorf("unexpected feedback %q", resp.Feedback)
	}

	if code := s.do(t, http.MethodPost, "/v1/commands", CommandRequest{Command: "launch end"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown action, got %d", code)
	}
}

func TestTokenRequired(t *testing.T) {
	s := newTestServer(t, "secret")

	resp, err := http.Get(s.server.URL + "/v1/timers")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", resp.StatusCode)
	}

	if code := s.do(t, http.MethodGet, "/v1/timers", nil, &TimersResponse{}); code != http.StatusOK {
		t.Errorf("expected 200 with the token, got %d", code)
	}

	health, err := http.Get(s.server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("expected health to skip auth, got %d", health.StatusCode)
	}
}

type recordingNotifier struct {
	notices []string
}

func (n *recordingNotifier) NotifyAll(text string) {
	n.notices = append(n.notices, text)
}

func TestAnnouncementRoutes(t *testing.T) {
	whitelist := access.NewList(nil, nil, false)
	orch := orchestrator.New(orchestrator.DefaultConfig(), orchestrator.Deps{
		Scheduler: countdowntest.NewManualScheduler(),
		Phase:     phase.NewState(phase.NewMemoryStore(phase.Record{})),
	})
	notifier := &recordingNotifier{}
	ann := announcer.New(countdowntest.NewManualScheduler(), notifier)
	ann.Load([]announcer.Announcement{{Name: "rules", Message: "Be nice", Enabled: true}})

	srv := NewServer(ServerConfig{}, NewHandler(orch, whitelist).WithAnnouncer(ann), nil)
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()
	s := &testServer{server: ts}

	var list AnnouncementsResponse
	s.do(t, http.MethodGet, "/v1/announcements", nil, &list)
	if len(list.Announcements) != 1 || list.Announcements[0].Name != "rules" {
		t.Fatalf("unexpected announcements %+v", list.Announcements)
	}

	if code := s.do(t, http.MethodPost, "/v1/announcements/rules/broadcast", nil, nil); code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", code)
	}
	if len(notifier.notices) != 1 || notifier.notices[0] != "Be nice" {
		t.Errorf("expected one broadcast, got %v", notifier.notices)
	}
	if code := s.do(t, http.MethodPost, "/v1/announcements/missing/broadcast", nil, &ErrorResponse{}); code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown announcement, got %d", code)
	}
}
