// Package gate is a minimal Minecraft front door. It answers server-list pings
// with the resolved status text, decides admission on login, and proxies
// admitted players to the backend server.
package gate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timing/go/internal/resolver"
	"github.com/mcdev12/timing/go/internal/textfmt"
)

// Resolver answers the status and admission hooks.
type Resolver interface {
	ResolveStatus() (string, bool)
	ResolveAdmission(id resolver.Identity) resolver.Decision
}

// Access enforces the whitelist after countdown admission has passed.
type Access interface {
	Permits(id resolver.Identity) bool
}

type Config struct {
	ListenAddr string
	// BackendAddr is the real server. When empty, status pings without an
	// override get a bare response and admitted logins are turned away.
	BackendAddr string

	VersionName string
	// Protocol advertised in status responses; zero echoes the client's.
	Protocol   int32
	MaxPlayers int

	HandshakeTimeout time.Duration
	DialTimeout      time.Duration

	NotWhitelistedMessage     string
	BackendUnavailableMessage string
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:                ":25565",
		VersionName:               "timing",
		MaxPlayers:                100,
		HandshakeTimeout:          5 * time.Second,
		DialTimeout:               3 * time.Second,
		NotWhitelistedMessage:     "<red>You are not whitelisted on this server.</red>",
		BackendUnavailableMessage: "<red>The server is not reachable right now.</red>",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.VersionName == "" {
		c.VersionName = def.VersionName
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = def.MaxPlayers
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.NotWhitelistedMessage == "" {
		c.NotWhitelistedMessage = def.NotWhitelistedMessage
	}
	if c.BackendUnavailableMessage == "" {
		c.BackendUnavailableMessage = def.BackendUnavailableMessage
	}
	return c
}

type Gate struct {
	cfg      Config
	resolver Resolver
	access   Access

	mu       sync.Mutex
	listener net.Listener
	sessions map[net.Conn]string
	closed   bool
	wg       sync.WaitGroup
}

// New creates a Gate. access may be nil to skip the whitelist.
func New(cfg Config, res Resolver, access Access) *Gate {
	return &Gate{
		cfg:      cfg.withDefaults(),
		resolver: res,
		access:   access,
		sessions: make(map[net.Conn]string),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled or Close is called.
func (g *Gate) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", g.cfg.ListenAddr, err)
	}
	return g.Serve(ctx, ln)
}

// Serve accepts connections on ln. It takes ownership of ln.
func (g *Gate) Serve(ctx context.Context, ln net.Listener) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		ln.Close()
		return ErrGateClosed
	}
	g.listener = ln
	g.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { g.Close() })
	defer stop()

	log.Info().Str("addr", ln.Addr().String()).Str("backend", g.cfg.BackendAddr).Msg("gate listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("failed to accept connection")
			continue
		}

		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			conn.Close()
			return nil
		}
		g.wg.Add(1)
		g.mu.Unlock()

		go func() {
			defer g.wg.Done()
			if err := g.handle(ctx, conn); err != nil && !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("connection ended with error")
			}
		}()
	}
}

// Close stops accepting, drops every proxied session, and waits for handlers.
func (g *Gate) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	ln := g.listener
	for conn := range g.sessions {
		conn.Close()
	}
	g.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	g.wg.Wait()
	log.Info().Msg("gate stopped")
	return err
}

// Online returns the number of players currently proxied to the backend.
func (g *Gate) Online() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, player := range g.sessions {
		if player != "" {
			n++
		}
	}
	return n
}

func (g *Gate) handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(g.cfg.HandshakeTimeout)); err != nil {
		return err
	}

	// Everything read from the client is captured so it can be replayed to
	// the backend when the connection is proxied.
	var captured bytes.Buffer
	r := bufio.NewReader(io.TeeReader(conn, &captured))

	id, payload, err := readPacket(r)
	if err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}
	hs, err := parseHandshake(id, payload)
	if err != nil {
		return err
	}

	switch hs.NextState {
	case nextStateStatus:
		return g.handleStatus(ctx, conn, r, &captured, hs)
	case nextStateLogin, nextStateTransfer:
		return g.handleLogin(ctx, conn, r, &captured)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownNextState, hs.NextState)
	}
}

type statusResponse struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int32  `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
	} `json:"players"`
	Description textComponent `json:"description"`
}

type textComponent struct {
	Text string `json:"text"`
}

func (g *Gate) handleStatus(ctx context.Context, conn net.Conn, r *bufio.Reader, captured *bytes.Buffer, hs handshake) error {
	text, ok := g.resolver.ResolveStatus()
	if !ok && g.cfg.BackendAddr != "" {
		return g.proxy(ctx, conn, captured.Bytes(), "")
	}

	id, _, err := readPacket(r)
	if err != nil {
		return fmt.Errorf("read status request: %w", err)
	}
	if id != packetStatusRequest {
		return fmt.Errorf("%w: 0x%02x during status", ErrUnexpectedPacket, id)
	}

	var resp statusResponse
	resp.Version.Name = g.cfg.VersionName
	resp.Version.Protocol = g.cfg.Protocol
	if resp.Version.Protocol == 0 {
		resp.Version.Protocol = hs.ProtocolVersion
	}
	resp.Players.Max = g.cfg.MaxPlayers
	resp.Players.Online = g.Online()
	resp.Description.Text = textfmt.Legacy(text)

	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal status response: %w", err)
	}
	if err := writePacket(conn, packetStatusRequest, appendString(nil, string(body))); err != nil {
		return fmt.Errorf("write status response: %w", err)
	}

	id, payload, err := readPacket(r)
	if err != nil {
		// Clients may hang up without pinging.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read ping: %w", err)
	}
	if id != packetStatusPing {
		return fmt.Errorf("%w: 0x%02x during status", ErrUnexpectedPacket, id)
	}
	return writePacket(conn, packetStatusPing, payload)
}

func (g *Gate) handleLogin(ctx context.Context, conn net.Conn, r *bufio.Reader, captured *bytes.Buffer) error {
	id, payload, err := readPacket(r)
	if err != nil {
		return fmt.Errorf("read login start: %w", err)
	}
	ls, err := parseLoginStart(id, payload)
	if err != nil {
		return err
	}

	identity := resolver.Identity{Name: ls.Name, UUID: ls.UUID}

	decision := g.resolver.ResolveAdmission(identity)
	if !decision.Admit {
		log.Info().Str("player", identity.String()).Msg("login rejected by countdown")
		return writeDisconnect(conn, decision.Message)
	}
	if g.access != nil && !g.access.Permits(identity) {
		log.Info().Str("player", identity.String()).Msg("login rejected by whitelist")
		return writeDisconnect(conn, g.cfg.NotWhitelistedMessage)
	}
	if g.cfg.BackendAddr == "" {
		return writeDisconnect(conn, g.cfg.BackendUnavailableMessage)
	}

	return g.proxy(ctx, conn, captured.Bytes(), identity.Name)
}

func writeDisconnect(conn net.Conn, markup string) error {
	body, err := json.Marshal(textComponent{Text: textfmt.Legacy(markup)})
	if err != nil {
		return fmt.Errorf("marshal disconnect: %w", err)
	}
	if err := writePacket(conn, packetLoginKick, appendString(nil, string(body))); err != nil {
		return fmt.Errorf("write disconnect: %w", err)
	}
	return nil
}

// proxy dials the backend, replays what the client already sent, and copies
// in both directions until either side closes. player is empty for status pings.
func (g *Gate) proxy(ctx context.Context, client net.Conn, replay []byte, player string) error {
	dialer := net.Dialer{Timeout: g.cfg.DialTimeout}
	backend, err := dialer.DialContext(ctx, "tcp", g.cfg.BackendAddr)
	if err != nil {
		log.Warn().Err(err).Str("backend", g.cfg.BackendAddr).Msg("backend unreachable")
		if player != "" {
			return writeDisconnect(client, g.cfg.BackendUnavailableMessage)
		}
		return fmt.Errorf("dial backend: %w", err)
	}
	defer backend.Close()

	if err := client.SetReadDeadline(time.Time{}); err != nil {
		return err
	}
	if _, err := backend.Write(replay); err != nil {
		return fmt.Errorf("replay to backend: %w", err)
	}

	if !g.track(client, player) {
		return ErrGateClosed
	}
	defer g.untrack(client)
	if player != "" {
		log.Info().Str("player", player).Msg("player proxied to backend")
	}

	completed := make(chan struct{}, 2)
	go func() {
		io.Copy(backend, client)
		completed <- struct{}{}
	}()
	go func() {
		io.Copy(client, backend)
		completed <- struct{}{}
	}()

	<-completed
	client.Close()
	backend.Close()
	<-completed

	if player != "" {
		log.Info().Str("player", player).Msg("player disconnected")
	}
	return nil
}

func (g *Gate) track(conn net.Conn, player string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.sessions[conn] = player
	return true
}

func (g *Gate) untrack(conn net.Conn) {
	g.mu.Lock()
	delete(g.sessions, conn)
	g.mu.Unlock()
}
