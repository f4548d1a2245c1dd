package gate

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/timing/go/internal/access"
	"github.com/mcdev12/timing/go/internal/countdown/countdowntest"
	"github.com/mcdev12/timing/go/internal/orchestrator"
	"github.com/mcdev12/timing/go/internal/phase"
	"github.com/mcdev12/timing/go/internal/resolver"
	"github.com/mcdev12/timing/go/internal/textfmt"
)

type fakeResolver struct {
	status   string
	override bool
	decision resolver.Decision

	mu       sync.Mutex
	admitted []resolver.Identity
}

func (f *fakeResolver) ResolveStatus() (string, bool) {
	return f.status, f.override
}

func (f *fakeResolver) ResolveAdmission(id resolver.Identity) resolver.Decision {
	f.mu.Lock()
	f.admitted = append(f.admitted, id)
	f.mu.Unlock()
	return f.decision
}

type denyAll struct{}

func (denyAll) Permits(resolver.Identity) bool { return false }

func startGate(t *testing.T, cfg Config, res Resolver, access Access) (*Gate, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	g := New(cfg, res, access)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		g.Close()
		if err := <-done; err != nil {
			t.Errorf("serve: %v", err)
		}
	})
	return g, ln.Addr().String()
}

func dial(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial gate: %v", err)
	}
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func readStringPacket(t *testing.T, r *bufio.Reader) (int32, string) {
	t.Helper()
	id, payload, err := readPacket(r)
	if err != nil {
		t.Fatalf("read packet: %v", err)
	}
	text, err := newPacketReader(payload).string(maxStringLength)
	if err != nil {
		t.Fatalf("read string: %v", err)
	}
	return id, text
}

func TestStatusOverrideIsServedLocally(t *testing.T) {
	res := &fakeResolver{status: "<red>Server Starting</red> in 1m 0s", override: true}
	_, addr := startGate(t, Config{MaxPlayers: 20}, res, nil)

	conn, r := dial(t, addr)
	hs := handshake{ProtocolVersion: 765, ServerAddress: "localhost", ServerPort: 25565, NextState: nextStateStatus}
	conn.Write(hs.encode())
	conn.Write(encodePacket(packetStatusRequest, nil))

	id, body := readStringPacket(t, r)
	if id != packetStatusRequest {
		t.Fatalf("expected status response, got packet 0x%02x", id)
	}

	var resp statusResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if resp.Description.Text != textfmt.Legacy(res.status) {
		t.Errorf("expected description %q, got %q", textfmt.Legacy(res.status), resp.Description.Text)
	}
	if resp.Version.Protocol != 765 {
		t.Errorf("expected echoed protocol 765, got %d", resp.Version.Protocol)
	}
	if resp.Players.Max != 20 {
		t.Errorf("expected max players 20, got %d", resp.Players.Max)
	}

	ping := []byte{0, 0, 0, 0, 0, 0, 0x30, 0x39}
	conn.Write(encodePacket(packetStatusPing, ping))
	id, payload, err := readPacket(r)
	if err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if id != packetStatusPing || string(payload) != string(ping) {
		t.Errorf("unexpected pong 0x%02x %x", id, payload)
	}
}

// fakeBackend accepts one connection, reads the handshake and the next packet,
// and answers with reply.
func fakeBackend(t *testing.T, reply []byte) (string, <-chan handshake, <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen backend: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	handshakes := make(chan handshake, 1)
	seconds := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)

		id, payload, err := readPacket(r)
		if err != nil {
			return
		}
		hs, err := parseHandshake(id, payload)
		if err != nil {
			return
		}
		handshakes <- hs

		_, payload, err = readPacket(r)
		if err != nil {
			return
		}
		seconds <- payload

		conn.Write(reply)
		// Hold the session open until the client hangs up.
		r.ReadByte()
	}()
	return ln.Addr().String(), handshakes, seconds
}

func TestStatusWithoutOverrideIsForwarded(t *testing.T) {
	backend, handshakes, _ := fakeBackend(t, encodePacket(0x00, appendString(nil, "from backend")))
	_, addr := startGate(t, Config{BackendAddr: backend}, &fakeResolver{}, nil)

	conn, r := dial(t, addr)
	conn.Write(handshake{ProtocolVersion: 765, ServerAddress: "localhost", ServerPort: 25565, NextState: nextStateStatus}.encode())
	conn.Write(encodePacket(packetStatusRequest, nil))

	_, body := readStringPacket(t, r)
	if body != "from backend" {
		t.Errorf("expected backend response, got %q", body)
	}

	select {
	case hs := <-handshakes:
		if hs.NextState != nextStateStatus || hs.ServerAddress != "localhost" {
			t.Errorf("backend saw unexpected handshake %+v", hs)
		}
	case <-time.After(time.Second):
		t.Fatal("backend never received the replayed handshake")
	}
}

func login(t *testing.T, addr, name string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, r := dial(t, addr)
	conn.Write(handshake{ProtocolVersion: 765, ServerAddress: "localhost", ServerPort: 25565, NextState: nextStateLogin}.encode())
	conn.Write(loginStart{Name: name}.encode())
	return conn, r
}

func readDisconnect(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	id, body := readStringPacket(t, r)
	if id != packetLoginKick {
		t.Fatalf("expected login disconnect, got packet 0x%02x", id)
	}
	var text textComponent
	if err := json.Unmarshal([]byte(body), &text); err != nil {
		t.Fatalf("unmarshal disconnect: %v", err)
	}
	return text.Text
}

func TestLoginRejectedByCountdown(t *testing.T) {
	message := "<red>Server Starting</red> in 30s"
	res := &fakeResolver{decision: resolver.Reject(message)}
	_, addr := startGate(t, Config{}, res, nil)

	_, r := login(t, addr, "Steve")
	if got := readDisconnect(t, r); got != textfmt.Legacy(message) {
		t.Errorf("expected %q, got %q", textfmt.Legacy(message), got)
	}

	res.mu.Lock()
	defer res.mu.Unlock()
	if len(res.admitted) != 1 || res.admitted[0].Name != "Steve" {
		t.Errorf("expected admission asked for Steve, got %+v", res.admitted)
	}
}

func TestLoginRejectedByWhitelist(t *testing.T) {
	res := &fakeResolver{decision: resolver.Admit()}
	_, addr := startGate(t, Config{NotWhitelistedMessage: "not on the list"}, res, denyAll{})

	_, r := login(t, addr, "Steve")
	if got := readDisconnect(t, r); got != "not on the list" {
		t.Errorf("expected whitelist message, got %q", got)
	}
}

func TestLoginWithoutBackend(t *testing.T) {
	res := &fakeResolver{decision: resolver.Admit()}
	_, addr := startGate(t, Config{BackendUnavailableMessage: "try later"}, res, nil)

	_, r := login(t, addr, "Steve")
	if got := readDisconnect(t, r); got != "try later" {
		t.Errorf("expected unavailable message, got %q", got)
	}
}

func TestAdmittedLoginIsProxied(t *testing.T) {
	backend, _, seconds := fakeBackend(t, []byte("welcome"))
	res := &fakeResolver{decision: resolver.Admit()}
	g, addr := startGate(t, Config{BackendAddr: backend}, res, nil)

	_, r := login(t, addr, "Steve")

	select {
	case payload := <-seconds:
		ls, err := parseLoginStart(packetLoginStart, payload)
		if err != nil {
			t.Fatalf("backend login start: %v", err)
		}
		if ls.Name != "Steve" {
			t.Errorf("backend saw player %q", ls.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("backend never received the replayed login")
	}

	buf := make([]byte, len("welcome"))
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("read proxied bytes: %v", err)
	}
	if string(buf) != "welcome" {
		t.Errorf("expected proxied bytes, got %q", buf)
	}

	if online := g.Online(); online != 1 {
		t.Errorf("expected 1 player online, got %d", online)
	}
}

func TestOpenedServerAdmitsAfterReboot(t *testing.T) {
	list := access.NewList([]string{"notch"}, nil, true)
	orch := orchestrator.New(orchestrator.DefaultConfig(), orchestrator.Deps{
		Scheduler:  countdowntest.NewManualScheduler(),
		Phase:      phase.NewState(phase.NewMemoryStore(phase.Record{Started: true})),
		Whitelist:  list,
		Privileges: list,
	})
	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("start orchestrator: %v", err)
	}
	t.Cleanup(func() { orch.Close(context.Background()) })

	backend, _, seconds := fakeBackend(t, []byte("welcome"))
	_, addr := startGate(t, Config{BackendAddr: backend, NotWhitelistedMessage: "not on the list"}, orch, list)

	_, r := login(t, addr, "Steve")

	select {
	case <-seconds:
	case <-time.After(time.Second):
		t.Fatal("ordinary player was not proxied to the backend")
	}
	buf := make([]byte, len("welcome"))
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("read proxied bytes: %v", err)
	}
}

func TestServeAfterCloseFails(t *testing.T) {
	g := New(Config{}, &fakeResolver{}, nil)
	g.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := g.Serve(context.Background(), ln); err != ErrGateClosed {
		t.Fatalf("expected ErrGateClosed, got %v", err)
	}
}
