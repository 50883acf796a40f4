package server_test

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jowharshamshiri/janus/pkg/client"
	"github.com/jowharshamshiri/janus/pkg/server"
)

func testSocketPath(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("/tmp/janus_test_%d_%d.sock", os.Getpid(), time.Now().UnixNano())
}

func newTestServer(t *testing.T, cfg server.Config) *server.Server {
	t.Helper()
	cfg.SocketPath = testSocketPath(t)
	cfg.CleanupOnStart = true
	cfg.CleanupOnShutdown = true
	srv, err := server.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func newTestClient(t *testing.T, socketPath string) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{SocketPath: socketPath, EnableValidation: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

// TestPingScenario is spec.md §8 scenario 1.
func TestPingScenario(t *testing.T) {
	srv := newTestServer(t, server.Config{})
	c := newTestClient(t, srv.Stats().SocketPath)

	resp, err := c.SendRequest("ping", nil, 2*time.Second)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got error %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["message"] != "pong" {
		t.Fatalf("expected message=pong, got %+v", resp.Result)
	}
}

// TestEchoScenario is spec.md §8 scenario 2.
func TestEchoScenario(t *testing.T) {
	srv := newTestServer(t, server.Config{})
	c := newTestClient(t, srv.Stats().SocketPath)

	resp, err := c.SendRequest("echo", map[string]interface{}{"message": "hello world"}, 2*time.Second)
	if err != nil {
		t.Fatalf("echo: %v", err)
	}
	result := resp.Result.(map[string]interface{})
	if result["message"] != "hello world" {
		t.Fatalf("expected echoed message, got %+v", result)
	}
}

// TestUnknownRequestScenario is spec.md §8 scenario 4.
func TestUnknownRequestScenario(t *testing.T) {
	srv := newTestServer(t, server.Config{})
	c := newTestClient(t, srv.Stats().SocketPath)

	resp, err := c.SendRequest("does_not_exist", nil, 2*time.Second)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Success {
		t.Fatal("expected failure for unknown request")
	}
	errObj := resp.Error.(map[string]interface{})
	if int(errObj["code"].(float64)) != -32601 {
		t.Fatalf("expected code -32601, got %v", errObj["code"])
	}
}

// TestTimeoutScenario is spec.md §8 scenario 5.
func TestTimeoutScenario(t *testing.T) {
	srv := newTestServer(t, server.Config{})
	c := newTestClient(t, srv.Stats().SocketPath)

	resp, err := c.SendRequest("slow_process", map[string]interface{}{"duration": float64(500)}, 100*time.Millisecond)
	if err == nil && resp != nil && resp.Success {
		t.Fatal("expected client to observe a timeout")
	}
}

// TestConcurrencyCapScenario is spec.md §8 scenario 6.
func TestConcurrencyCapScenario(t *testing.T) {
	srv := newTestServer(t, server.Config{MaxConcurrentHandlers: 1})
	socketPath := srv.Stats().SocketPath

	var successes, rejections int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newTestClient(t, socketPath)
			resp, err := c.SendRequest("slow_process", map[string]interface{}{"duration": float64(200)}, 2*time.Second)
			if err != nil {
				return
			}
			if resp.Success {
				atomic.AddInt32(&successes, 1)
			} else if errObj, ok := resp.Error.(map[string]interface{}); ok {
				if int(errObj["code"].(float64)) == -32003 {
					atomic.AddInt32(&rejections, 1)
				}
			}
		}()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	if atomic.LoadInt32(&successes) < 1 {
		t.Fatalf("expected at least one success under the cap, got %d", successes)
	}
	if atomic.LoadInt32(&rejections) != 2 {
		t.Fatalf("expected the two over-cap requests to be rejected with -32003, got %d", rejections)
	}
}

func TestReservedNameCannotBeRegistered(t *testing.T) {
	srv := newTestServer(t, server.Config{})
	err := srv.RegisterRequestHandler("ping", func(args map[string]interface{}) (interface{}, error) {
		return nil, nil
	})
	if err == nil {
		t.Fatal("expected registering a reserved name to fail")
	}
}

func TestGetInfoReportsStats(t *testing.T) {
	srv := newTestServer(t, server.Config{Name: "demo", Version: "9.9.9"})
	c := newTestClient(t, srv.Stats().SocketPath)

	resp, err := c.SendRequest("get_info", nil, 2*time.Second)
	if err != nil {
		t.Fatalf("get_info: %v", err)
	}
	result := resp.Result.(map[string]interface{})
	if result["server"] != "demo" || result["version"] != "9.9.9" {
		t.Fatalf("unexpected get_info payload: %+v", result)
	}
	// The get_info handler itself is in flight, and its reply socket is the one known client.
	if result["activeHandlers"] != float64(1) || result["activeClients"] != float64(1) {
		t.Fatalf("expected activeHandlers=1 and activeClients=1, got %+v", result)
	}
}
