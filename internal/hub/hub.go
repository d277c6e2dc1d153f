// Package hub provides a WebSocket broadcast hub and network trust
// utilities, used to fan telemetry events (internal/telemetry) out to
// dashboard clients. Grounded on the teacher's internal/hub.Hub for the
// connection bookkeeping and trust check, extended with per-client kind
// filtering so a dashboard can subscribe to e.g. only compile.* events
// instead of the full firehose.
package hub

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/defdo-dev/tailwindport/internal/telemetry"
)

// client pairs a connection with the set of event kinds it wants to
// receive. An empty kinds set means "everything".
type client struct {
	conn  *websocket.Conn
	kinds map[telemetry.Kind]bool
}

func (c *client) wants(kind telemetry.Kind) bool {
	if len(c.kinds) == 0 {
		return true
	}
	return c.kinds[kind]
}

// Hub manages WebSocket connections and broadcasts messages to all clients.
type Hub struct {
	mu          sync.Mutex
	clients     map[*websocket.Conn]*client
	broadcast   chan []byte
	trustedNets []*net.IPNet
	upgrader    websocket.Upgrader
	log         zerolog.Logger
}

// New creates a Hub. trustedNets restricts which remote addresses may connect;
// pass nil to allow all.
func New(trustedNets []*net.IPNet, logger zerolog.Logger) *Hub {
	h := &Hub{
		clients:     make(map[*websocket.Conn]*client),
		broadcast:   make(chan []byte, 256),
		trustedNets: trustedNets,
		upgrader: websocket.Upgrader{
			// Origin checking is handled by isTrusted; accept all origins here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.With().Str("component", "hub").Logger(),
	}
	go h.run()
	return h
}

// Broadcast queues data to be sent to every client subscribed to the
// event's kind. It is safe to call from any goroutine. Drops silently if
// the buffer is full — telemetry must never block the pool's hot path.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
	}
}

// ServeWS upgrades the HTTP connection to a WebSocket and registers the
// client. Connections from untrusted addresses receive 403 Forbidden. A
// "kinds" query parameter (comma-separated telemetry.Kind values) scopes
// the connection to a subset of events; omitted or empty means all kinds.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !h.isTrusted(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, kinds: parseKinds(r.URL.Query().Get("kinds"))}

	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()

	// Read pump — needed to detect disconnections and process control frames.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// run is the send loop; it runs in a dedicated goroutine.
func (h *Hub) run() {
	for data := range h.broadcast {
		kind := eventKind(data)
		h.mu.Lock()
		for conn, c := range h.clients {
			if !c.wants(kind) {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				delete(h.clients, conn)
				conn.Close()
			}
		}
		h.mu.Unlock()
	}
}

// eventKind extracts the "kind" field from a telemetry.Event JSON payload
// without allocating the full Event, since run() does this on every frame.
func eventKind(data []byte) telemetry.Kind {
	var envelope struct {
		Kind telemetry.Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	return envelope.Kind
}

func parseKinds(raw string) map[telemetry.Kind]bool {
	if raw == "" {
		return nil
	}
	out := map[telemetry.Kind]bool{}
	for _, part := range strings.Split(raw, ",") {
		if k := strings.TrimSpace(part); k != "" {
			out[telemetry.Kind(k)] = true
		}
	}
	return out
}

// isTrusted returns true if the request's remote address falls within one of
// the hub's trusted networks, or if no networks are configured.
func (h *Hub) isTrusted(r *http.Request) bool {
	if len(h.trustedNets) == 0 {
		return true
	}
	host := r.RemoteAddr
	if h2, _, err := net.SplitHostPort(host); err == nil {
		host = h2
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range h.trustedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ParseTrustedCIDRs parses a comma-separated list of CIDR strings.
func ParseTrustedCIDRs(s string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, raw := range strings.Split(s, ",") {
		cidr := strings.TrimSpace(raw)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		out = append(out, ipNet)
	}
	return out, nil
}

// DetectLocalSubnets returns the CIDRs of all local network interfaces.
func DetectLocalSubnets() []*net.IPNet {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var out []*net.IPNet
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			switch v := addr.(type) {
			case *net.IPNet:
				out = append(out, v)
			case *net.IPAddr:
				if mask := v.IP.DefaultMask(); mask != nil {
					out = append(out, &net.IPNet{IP: v.IP, Mask: mask})
				}
			}
		}
	}
	return out
}
