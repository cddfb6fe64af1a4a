package ws_test

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/linechat/internal/chat"
	wst "github.com/omochice/linechat/internal/transport/ws"
)

func TestConn_ImplementsInterface(t *testing.T) {
	var _ chat.Conn = (*wst.Conn)(nil)
}

func TestConn_ReadAppendsNewline(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := wst.NewConn(server)

	go wsutil.WriteClientText(client, []byte("TEXT@a@hi"))

	data, err := conn.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TEXT@a@hi\n", string(data))
}

func TestConn_ReadCloseFrameIsEOF(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := wst.NewConn(server)

	go func() {
		_ = wsutil.WriteClientMessage(client, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		// Swallow the close reply written by the server side.
		_, _ = io.Copy(io.Discard, client)
	}()

	_, err := conn.Read(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_WriteStripsNewline(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := wst.NewConn(server)

	go func() {
		assert.NoError(t, conn.Write(context.Background(), []byte("TEXT@a@hi\n")))
	}()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	data, err := wsutil.ReadServerText(client)
	require.NoError(t, err)
	assert.Equal(t, "TEXT@a@hi", string(data))
}

func TestConn_RemoteAddr(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	assert.NotEmpty(t, wst.NewConn(server).RemoteAddr())
}

func TestConn_CloseDuringWritesKeepsFramesIntact(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	conn := wst.NewConn(server)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if err := conn.Write(context.Background(), []byte("TEXT@a@0123456789\n")); err != nil {
				return
			}
		}
	}()

	received, closeSeen := 0, false
	for !closeSeen {
		require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
		frame, err := ws.ReadFrame(client)
		require.NoError(t, err, "after %d messages", received)

		switch frame.Header.OpCode {
		case ws.OpText:
			assert.Equal(t, "TEXT@a@0123456789", string(frame.Payload))
			received++
			if received == 5 {
				go conn.Close()
			}
		case ws.OpClose:
			closeSeen = true
		default:
			t.Fatalf("unexpected opcode %v after %d messages", frame.Header.OpCode, received)
		}
	}

	// Nothing may follow the close frame.
	_, err := ws.ReadFrame(client)
	assert.Error(t, err)

	wg.Wait()
	assert.GreaterOrEqual(t, received, 5)
}

func TestConn_WriteAfterClose(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	go func() { _, _ = io.Copy(io.Discard, client) }()

	conn := wst.NewConn(server)
	require.NoError(t, conn.Close())
	assert.Error(t, conn.Write(context.Background(), []byte("late\n")))
}
