package ws

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gobwas/ws/wsutil"

	"github.com/hearthline/hearth/internal/protocol"
)

// pipeConn builds a Connection over net.Pipe and drains server-side frames
// into a channel so Send never blocks the test.
func pipeConn(t *testing.T) (*Connection, <-chan []byte) {
	t.Helper()

	server, client := net.Pipe()
	conn := &Connection{ID: "test-conn", Conn: server, CreatedAt: time.Now()}

	frames := make(chan []byte, 16)
	go func() {
		for {
			data, _, err := wsutil.ReadServerData(client)
			if err != nil {
				close(frames)
				return
			}
			frames <- data
		}
	}()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return conn, frames
}

func recvFrame(t *testing.T, frames <-chan []byte) map[string]interface{} {
	t.Helper()
	select {
	case data := <-frames:
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("reply is not valid JSON: %v", err)
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply frame")
		return nil
	}
}

func TestDispatchRoutesToHandler(t *testing.T) {
	conn, _ := pipeConn(t)
	d := NewCommandDispatcher()

	var got protocol.SubscribeMsg
	d.Register(protocol.TypeSubscribe, func(c *Connection, msg interface{}) {
		got = msg.(protocol.SubscribeMsg)
	})

	d.Dispatch(conn, []byte(`{"type":"subscribe","channel":"room:7"}`))

	if got.Channel != "room:7" {
		t.Errorf("handler received %+v, want channel room:7", got)
	}
}

func TestDispatchPingAnsweredInternally(t *testing.T) {
	conn, frames := pipeConn(t)
	d := NewCommandDispatcher()

	d.Dispatch(conn, []byte(`{"type":"ping"}`))

	reply := recvFrame(t, frames)
	if reply["type"] != protocol.TypePong {
		t.Errorf("reply type = %v, want pong", reply["type"])
	}
}

func TestDispatchUnknownTypeSendsError(t *testing.T) {
	conn, frames := pipeConn(t)
	d := NewCommandDispatcher()

	d.Dispatch(conn, []byte(`{"type":"no.such.command"}`))

	reply := recvFrame(t, frames)
	if reply["type"] != protocol.TypeError || reply["code"] != "unsupported_type" {
		t.Errorf("unexpected reply: %v", reply)
	}
}

func TestDispatchParseErrorSendsError(t *testing.T) {
	conn, frames := pipeConn(t)
	d := NewCommandDispatcher()

	d.Dispatch(conn, []byte(`{broken`))

	reply := recvFrame(t, frames)
	if reply["type"] != protocol.TypeError || reply["code"] != "parse_error" {
		t.Errorf("unexpected reply: %v", reply)
	}
}

func TestSendErrorKeyedCarriesClientKey(t *testing.T) {
	conn, frames := pipeConn(t)
	d := NewCommandDispatcher()

	d.SendErrorKeyed(conn, "rate_limited", "too fast", "abc123")

	reply := recvFrame(t, frames)
	if reply["client_key"] != "abc123" {
		t.Errorf("client_key = %v, want abc123", reply["client_key"])
	}
}
