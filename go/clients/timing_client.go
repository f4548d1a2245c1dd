package clients

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcdev12/timing/go/internal/api"
)

// TimingClient talks to the timingd HTTP API.
type TimingClient struct {
	*BaseClient
}

func NewTimingClient(baseURL, token string) *TimingClient {
	client := &TimingClient{
		BaseClient: NewBaseClient(baseURL),
	}
	if token != "" {
		client.SetHeader("Authorization", "Bearer "+token)
	}
	return client
}

func timerPath(kind string) string {
	return "/v1/timers/" + url.PathEscape(kind)
}

func (c *TimingClient) StartTimer(ctx context.Context, kind string, seconds int) (api.TimerResponse, error) {
	var resp api.TimerResponse
	if err := c.Post(ctx, timerPath(kind)+"/start", api.StartTimerRequest{Seconds: seconds}, &resp); err != nil {
		return api.TimerResponse{}, fmt.Errorf("failed to start %s timer: %w", kind, err)
	}
	return resp, nil
}

func (c *TimingClient) StopTimer(ctx context.Context, kind string) (api.TimerResponse, error) {
	var resp api.TimerResponse
	if err := c.Post(ctx, timerPath(kind)+"/stop", nil, &resp); err != nil {
		return api.TimerResponse{}, fmt.Errorf("failed to stop %s timer: %w", kind, err)
	}
	return resp, nil
}

func (c *TimingClient) Timer(ctx context.Context, kind string) (api.TimerResponse, error) {
	var resp api.TimerResponse
	if err := c.Get(ctx, timerPath(kind), &resp); err != nil {
		return api.TimerResponse{}, fmt.Errorf("failed to get %s timer: %w", kind, err)
	}
	return resp, nil
}

func (c *TimingClient) Timers(ctx context.Context) (api.TimersResponse, error) {
	var resp api.TimersResponse
	if err := c.Get(ctx, "/v1/timers", &resp); err != nil {
		return api.TimersResponse{}, fmt.Errorf("failed to list timers: %w", err)
	}
	return resp, nil
}

func (c *TimingClient) Status(ctx context.Context) (api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.Get(ctx, "/v1/status", &resp); err != nil {
		return api.StatusResponse{}, fmt.Errorf("failed to get status: %w", err)
	}
	return resp, nil
}

func (c *TimingClient) Admission(ctx context.Context, name, id string) (api.AdmissionResponse, error) {
	var resp api.AdmissionResponse
	if err := c.Post(ctx, "/v1/admission", api.AdmissionRequest{Name: name, UUID: id}, &resp); err != nil {
		return api.AdmissionResponse{}, fmt.Errorf("failed to check admission: %w", err)
	}
	return resp, nil
}

func (c *TimingClient) Whitelist(ctx context.Context) (api.WhitelistResponse, error) {
	var resp api.WhitelistResponse
	if err := c.Get(ctx, "/v1/whitelist", &resp); err != nil {
		return api.WhitelistResponse{}, fmt.Errorf("failed to get whitelist: %w", err)
	}
	return resp, nil
}

func (c *TimingClient) UpdateWhitelist(ctx context.Context, req api.WhitelistRequest) (api.WhitelistResponse, error) {
	var resp api.WhitelistResponse
	if err := c.Post(ctx, "/v1/whitelist", req, &resp); err != nil {
		return api.WhitelistResponse{}, fmt.Errorf("failed to update whitelist: %w", err)
	}
	return resp, nil
}

// Command runs a text command such as "start beginning 60" and returns its feedback.
func (c *TimingClient) Command(ctx context.Context, command string) (string, error) {
	var resp api.CommandResponse
	if err := c.Post(ctx, "/v1/commands", api.CommandRequest{Command: command}, &resp); err != nil {
		return "", fmt.Errorf("failed to run command: %w", err)
	}
	return resp.Feedback, nil
}

func (c *TimingClient) Announcements(ctx context.Context) (api.AnnouncementsResponse, error) {
	var resp api.AnnouncementsResponse
	if err := c.Get(ctx, "/v1/announcements", &resp); err != nil {
		return api.AnnouncementsResponse{}, fmt.Errorf("failed to list announcements: %w", err)
	}
	return resp, nil
}

func (c *TimingClient) BroadcastAnnouncement(ctx context.Context, name string) error {
	if err := c.Post(ctx, "/v1/announcements/"+url.PathEscape(name)+"/broadcast", nil, nil); err != nil {
		return fmt.Errorf("failed to broadcast %s: %w", name, err)
	}
	return nil
}
