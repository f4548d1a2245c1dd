package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startGateway(t *testing.T) (*ConnectionManager, *httptest.Server) {
	t.Helper()
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	mux := http.NewServeMux()
	NewWebSocketHandler(cm).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return cm, srv
}

func dial(t *testing.T, srv *httptest.Server, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/observe?name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", name, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForObservers(t *testing.T, cm *ConnectionManager, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(cm.Observers()) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("observers = %v, want %d", cm.Observers(), want)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestNotifyAllReachesEveryObserver(t *testing.T) {
	cm, srv := startGateway(t)
	alex := dial(t, srv, "alex")
	steve := dial(t, srv, "steve")
	waitForObservers(t, cm, 2)

	cm.NotifyAll("<yellow>Server starting in <white>10s</white></yellow>")

	for _, conn := range []*websocket.Conn{alex, steve} {
		msg := readMessage(t, conn)
		if msg.Type != MessageTypeNotice || msg.Text != "Server starting in 10s" {
			t.Fatalf("message = %+v", msg)
		}
	}
	if got := cm.Observers(); got[0] != "alex" || got[1] != "steve" {
		t.Fatalf("Observers = %v", got)
	}
}

func TestDisconnectClosesWithReason(t *testing.T) {
	cm, srv := startGateway(t)
	conn := dial(t, srv, "Alex")
	waitForObservers(t, cm, 1)

	if err := cm.Disconnect("alex", "<red>Server Stopped</red>"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeDisconnect || msg.Text != "Server Stopped" {
		t.Fatalf("message = %+v", msg)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != websocket.CloseNormalClosure || closeErr.Text != "Server Stopped" {
		t.Fatalf("close = %d %q", closeErr.Code, closeErr.Text)
	}
	waitForObservers(t, cm, 0)
}

func TestDisconnectUnknownObserver(t *testing.T) {
	cm, _ := startGateway(t)
	if err := cm.Disconnect("nobody", "bye"); !errors.Is(err, ErrObserverNotFound) {
		t.Fatalf("Disconnect = %v", err)
	}
}

func TestObserveRequiresName(t *testing.T) {
	_, srv := startGateway(t)
	resp, err := http.Get(srv.URL + "/ws/observe")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCloseReasonFitsFrame(t *testing.T) {
	long := strings.Repeat("é", 100)
	got := closeReason(long)
	if len(got) > maxCloseReason {
		t.Fatalf("reason is %d bytes", len(got))
	}
	if !strings.HasPrefix(long, got) || len(got)%2 != 0 {
		t.Fatalf("reason split a rune: %q", got)
	}
}
