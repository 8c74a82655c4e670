package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const testContract = "0x96216849c49358B10257cb55b28eA603c874b05E"

type rpcCall struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func abiWord(n int64) string {
	return fmt.Sprintf("%064x", n)
}

func abiString(s string) string {
	padded := hex.EncodeToString([]byte(s))
	for len(padded)%64 != 0 {
		padded += "0"
	}
	return abiWord(32) + abiWord(int64(len(s))) + padded
}

// fakeNode speaks just enough JSON-RPC to serve the ERC-20 metadata
// calls, optionally failing the first N eth_call requests.
type fakeNode struct {
	mu       sync.Mutex
	failures int
	calls    int
	server   *httptest.Server
}

func newFakeNode(t *testing.T, failFirst int) *fakeNode {
	node := &fakeNode{failures: failFirst}
	node.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcCall
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode rpc request: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")

		if req.Method != "eth_call" {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x1"}`, req.ID)
			return
		}

		node.mu.Lock()
		node.calls++
		fail := node.failures > 0
		if fail {
			node.failures--
		}
		node.mu.Unlock()

		if fail {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32000,"message":"transient outage"}}`, req.ID)
			return
		}

		var callObj map[string]interface{}
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &callObj)
		}
		data, _ := callObj["input"].(string)
		if data == "" {
			data, _ = callObj["data"].(string)
		}

		var result string
		switch {
		case strings.HasPrefix(data, "0x313ce567"): // decimals()
			result = "0x" + abiWord(18)
		case strings.HasPrefix(data, "0x06fdde03"): // name()
			result = "0x" + abiString("Shalom")
		case strings.HasPrefix(data, "0x95d89b41"): // symbol()
			result = "0x" + abiString("SLH")
		default:
			result = "0x"
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"%s"}`, req.ID, result)
	}))
	t.Cleanup(node.server.Close)
	return node
}

func (n *fakeNode) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func setupTestToken(t *testing.T, node *fakeNode) *Token {
	client, err := Dial(node.server.URL, 56, 100*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(client.Close)

	token, err := NewToken(client, testContract)
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	return token
}

func TestTokenMetadata_RecoversAfterFailedFetch(t *testing.T) {
	node := newFakeNode(t, 1)
	token := setupTestToken(t, node)
	ctx := context.Background()

	// First fetch hits the outage and fails for this request only.
	if _, err := token.Decimals(ctx); err == nil {
		t.Fatal("Expected error while the node is down")
	}

	// The failure must not be cached: the next request succeeds.
	decimals, err := token.Decimals(ctx)
	if err != nil {
		t.Fatalf("Decimals after node recovery failed: %v", err)
	}
	if decimals != 18 {
		t.Errorf("Expected 18 decimals, got %d", decimals)
	}

	name, err := token.Name(ctx)
	if err != nil {
		t.Fatalf("Name failed: %v", err)
	}
	if name != "Shalom" {
		t.Errorf("Expected name Shalom, got %q", name)
	}
	symbol, err := token.Symbol(ctx)
	if err != nil {
		t.Fatalf("Symbol failed: %v", err)
	}
	if symbol != "SLH" {
		t.Errorf("Expected symbol SLH, got %q", symbol)
	}
}

func TestTokenMetadata_CachedAfterSuccess(t *testing.T) {
	node := newFakeNode(t, 0)
	token := setupTestToken(t, node)
	ctx := context.Background()

	if _, err := token.Decimals(ctx); err != nil {
		t.Fatalf("Decimals failed: %v", err)
	}
	loaded := node.callCount()

	// Further metadata reads come from the cache, not the node.
	for i := 0; i < 3; i++ {
		if _, err := token.Symbol(ctx); err != nil {
			t.Fatalf("Symbol failed: %v", err)
		}
	}
	if got := node.callCount(); got != loaded {
		t.Errorf("Expected no extra rpc calls after caching, got %d extra", got-loaded)
	}
}
