// Package realtime streams store publications to WebSocket observers.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Config tunes the gateway. Zero values select defaults.
type Config struct {
	// AllowedOrigins lists accepted Origin values ("*" accepts any).
	AllowedOrigins []string
	// OriginRequired rejects handshakes without an Origin header.
	OriginRequired bool

	SendQueueSize     int
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// Gateway upgrades /ws?topic=<name> requests and streams that topic to the client.
type Gateway struct {
	log    *slog.Logger
	topics map[string]Topic

	originRequired bool
	allowedOrigins []string
	originPatterns []string

	sendQueueSize    int
	writeTimeout     time.Duration
	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration

	mu      sync.Mutex
	clients map[string]*Client
}

// NewGateway constructs a Gateway serving topics.
func NewGateway(log *slog.Logger, cfg Config, topics ...Topic) *Gateway {
	if log == nil {
		log = slog.Default()
	}

	g := &Gateway{
		log:              log,
		topics:           make(map[string]Topic, len(topics)),
		originRequired:   cfg.OriginRequired,
		allowedOrigins:   cfg.AllowedOrigins,
		originPatterns:   deriveOriginPatterns(cfg.AllowedOrigins),
		sendQueueSize:    cfg.SendQueueSize,
		writeTimeout:     cfg.WriteTimeout,
		heartbeatEvery:   cfg.HeartbeatInterval,
		heartbeatTimeout: cfg.HeartbeatTimeout,
		clients:          make(map[string]*Client),
	}
	if cfg.SendQueueSize <= 0 {
		g.sendQueueSize = defaultSendQueueSize
	}
	if g.writeTimeout <= 0 {
		g.writeTimeout = defaultWriteTimeout
	}
	if g.heartbeatEvery <= 0 {
		g.heartbeatEvery = heartbeatInterval
	}
	if g.heartbeatTimeout <= 0 {
		g.heartbeatTimeout = heartbeatTimeout
	}

	for _, t := range topics {
		if t != nil {
			g.topics[t.Name()] = t
		}
	}
	return g
}

// Topics returns the served topic names, sorted.
func (g *Gateway) Topics() []string {
	out := make([]string, 0, len(g.topics))
	for name := range g.topics {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Clients returns the number of connected observers.
func (g *Gateway) Clients() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// CloseAll disconnects every observer.
func (g *Gateway) CloseAll() {
	g.mu.Lock()
	cs := make([]*Client, 0, len(g.clients))
	for _, c := range g.clients {
		cs = append(cs, c)
	}
	g.mu.Unlock()

	for _, c := range cs {
		c.Close()
	}
}

func (g *Gateway) register(c *Client) {
	g.mu.Lock()
	g.clients[c.ID] = c
	g.mu.Unlock()
}

func (g *Gateway) unregister(c *Client) {
	g.mu.Lock()
	delete(g.clients, c.ID)
	g.mu.Unlock()
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("topic"))
	topic, ok := g.topics[name]
	if !ok {
		http.Error(w, "unknown topic", http.StatusBadRequest)
		return
	}

	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{subprotocolV1},
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// Observers only listen; CloseRead services control frames and ends ctx when the peer leaves.
	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))
	defer cancel()

	client := NewClient(topic.Name(), g.sendQueueSize)
	g.register(client)
	defer g.unregister(client)

	sub := client.attach(topic)
	g.log.Info("ws.client.join", "client_id", client.ID, "topic", client.Topic)

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			sub.Unsubscribe()
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		g.heartbeat(ctx, conn, client, shutdown)
	}()

	g.writeLoop(ctx, conn, client, shutdown)

	select {
	case <-heartbeatDone:
	case <-time.After(closeGrace):
	}
	g.log.Info("ws.client.leave", "client_id", client.ID, "topic", client.Topic)
}

func (g *Gateway) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client, shutdown func(websocket.StatusCode, string)) {
	for {
		select {
		case <-ctx.Done():
			shutdown(websocket.StatusNormalClosure, "bye")
			return
		case env := <-client.Send:
			if err := g.write(ctx, conn, env); err != nil {
				g.log.Info("ws.write.fail", "client_id", client.ID, "close_status", websocket.CloseStatus(err), "err", err)
				shutdown(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		case <-client.Done():
			// Flush what was queued before the close, unless the close came from an overflow.
			if client.Overflowed() {
				g.log.Warn("ws.client.overflow", "client_id", client.ID, "topic", client.Topic)
				shutdown(websocket.StatusPolicyViolation, "observer too slow")
				return
			}
			for {
				select {
				case env := <-client.Send:
					if err := g.write(ctx, conn, env); err != nil {
						shutdown(websocket.StatusAbnormalClosure, "write failed")
						return
					}
				default:
					shutdown(websocket.StatusGoingAway, "closing")
					return
				}
			}
		}
	}
}

func (g *Gateway) write(ctx context.Context, conn *websocket.Conn, env Envelope) error {
	wctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, env)
}

func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, client *Client, shutdown func(websocket.StatusCode, string)) {
	t := time.NewTicker(g.heartbeatEvery)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err != nil {
				failures++
				g.log.Info("ws.ping.fail", "client_id", client.ID, "failures", failures, "err", err)
				if failures >= maxPingFailures {
					shutdown(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// ---- origin policy ----

func (g *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	originHost := originHostOnly(origin)
	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		switch {
		case a == "":
			continue
		case a == "*", origin == a:
			return nil
		case originHost != "" && originHost == originHostOnly(a):
			return nil
		}
	}

	// Same-host origins are always acceptable.
	if originHost != "" && originHost == originHostOnly(r.Host) {
		return nil
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Host
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatterns converts allowed origins into websocket.Accept host patterns.
func deriveOriginPatterns(allowed []string) []string {
	var out []string
	for _, a := range allowed {
		if strings.TrimSpace(a) == "*" {
			return []string{"*"}
		}
		h := originHostOnly(a)
		if h != "" && !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out
}
