package tcp_test

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/linechat/internal/chat"
	"github.com/omochice/linechat/internal/transport/tcp"
)

func startServer(t *testing.T) (*tcp.Server, *chat.Hub, func()) {
	t.Helper()
	hub := chat.NewHub(zerolog.Nop())
	srv := tcp.New("127.0.0.1:0", hub, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("Serve() error = %v", err)
	}

	return srv, hub, func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after cancel")
		}
	}
}

func TestServer_Serve(t *testing.T) {
	srv, _, stop := startServer(t)
	defer stop()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	conn.Close()
}

func TestServer_Addr(t *testing.T) {
	srv, _, stop := startServer(t)
	defer stop()

	assert.NotEmpty(t, srv.Addr())
}

func TestServer_Stop(t *testing.T) {
	srv, _, stop := startServer(t)
	addr := srv.Addr()

	stop()

	_, err := net.Dial("tcp", addr)
	assert.Error(t, err)
}

func TestServer_RelaysLinesToAllPeers(t *testing.T) {
	srv, hub, stop := startServer(t)
	defer stop()

	alice, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer alice.Close()
	bob, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer bob.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	_, err = alice.Write([]byte("TEXT@alice@hi bob\n"))
	require.NoError(t, err)

	for _, c := range []net.Conn{alice, bob} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		line, err := bufio.NewReader(c).ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "TEXT@alice@hi bob\n", line)
	}
}
