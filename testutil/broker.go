package testutil

import (
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding a free port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

// StartBroker runs an in-process broker that accepts every client. With
// a non-nil tlsConfig the listener speaks TLS. The broker is closed when
// the test ends. The inline client is enabled so tests can subscribe
// and publish on the broker directly.
func StartBroker(t *testing.T, tlsConfig *tls.Config) (*mochi.Server, string) {
	t.Helper()
	server := mochi.New(&mochi.Options{
		InlineClient: true,
	})
	server.Log = slog.New(slog.NewTextHandler(io.Discard, nil))

	err := server.AddHook(new(auth.AllowHook), nil)
	if err != nil {
		t.Fatalf("adding auth hook: %v", err)
	}
	addr := freeAddr(t)
	tcp := listeners.NewTCP(listeners.Config{
		ID:        "t1",
		Address:   addr,
		TLSConfig: tlsConfig,
	})
	err = server.AddListener(tcp)
	if err != nil {
		t.Fatalf("adding listener on %s: %v", addr, err)
	}
	err = server.Serve()
	if err != nil {
		t.Fatalf("starting broker: %v", err)
	}
	t.Cleanup(func() {
		server.Close()
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		c, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			c.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("broker on %s not reachable: %v", addr, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return server, addr
}

// StartMuteBroker accepts TCP connections and never answers on them,
// so a client's CONNECT stays pending until it gives up.
func StartMuteBroker(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("mute listener: %v", err)
	}
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
			go io.Copy(io.Discard, c)
		}
	}()
	t.Cleanup(func() {
		l.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return l.Addr().String()
}
