package hub

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/defdo-dev/tailwindport/internal/telemetry"
)

func discardLogger() zerolog.Logger { return zerolog.New(io.Discard) }

func TestParseTrustedCIDRs(t *testing.T) {
	nets, err := ParseTrustedCIDRs("10.0.0.0/8, 192.168.0.0/16")
	if err != nil {
		t.Fatalf("ParseTrustedCIDRs: %v", err)
	}
	if len(nets) != 2 {
		t.Fatalf("len(nets) = %d, want 2", len(nets))
	}
}

func TestParseTrustedCIDRsSkipsBlankEntries(t *testing.T) {
	nets, err := ParseTrustedCIDRs(" 10.0.0.0/8 ,, ")
	if err != nil {
		t.Fatalf("ParseTrustedCIDRs: %v", err)
	}
	if len(nets) != 1 {
		t.Errorf("len(nets) = %d, want 1", len(nets))
	}
}

func TestParseTrustedCIDRsRejectsInvalid(t *testing.T) {
	if _, err := ParseTrustedCIDRs("not-a-cidr"); err == nil {
		t.Error("ParseTrustedCIDRs should reject a malformed CIDR")
	}
}

func TestServeWSRejectsUntrustedRemote(t *testing.T) {
	nets, err := ParseTrustedCIDRs("10.0.0.0/8")
	if err != nil {
		t.Fatalf("ParseTrustedCIDRs: %v", err)
	}
	h := New(nets, discardLogger())

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for an untrusted remote", resp.StatusCode)
	}
}

func TestServeWSAllowsAllWhenNoTrustedNets(t *testing.T) {
	h := New(nil, discardLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("status = %d, want 101", resp.StatusCode)
	}
}

func TestBroadcastDeliversToConnectedClient(t *testing.T) {
	h := New(nil, discardLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// Give ServeWS's registration goroutine a moment to add the client
	// before broadcasting, since the handshake response races the map insert.
	time.Sleep(20 * time.Millisecond)
	h.Broadcast([]byte("hello"))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(msg) != "hello" {
		t.Errorf("message = %q, want hello", msg)
	}
}

func TestBroadcastFiltersByRequestedKinds(t *testing.T) {
	h := New(nil, discardLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "?kinds=" + url.QueryEscape(string(telemetry.KindCompileStart))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	bus := telemetry.NewBus(h, nil)
	bus.Publish(telemetry.KindPoolExhausted, "", "", nil)
	bus.Publish(telemetry.KindCompileStart, "fp", "", nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var got struct {
		Kind telemetry.Kind `json:"kind"`
	}
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != telemetry.KindCompileStart {
		t.Errorf("first delivered kind = %q, want %q (pool.exhausted should have been filtered out)", got.Kind, telemetry.KindCompileStart)
	}
}
