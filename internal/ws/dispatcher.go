package ws

import (
	"log"

	"github.com/hearthline/hearth/internal/protocol"
)

// CommandHandler is the callback signature for handling a parsed client
// command. The msg parameter is the concrete struct returned by
// protocol.ParseCommand (e.g., protocol.SubscribeMsg, protocol.MessageSendMsg).
type CommandHandler func(conn *Connection, msg interface{})

// CommandDispatcher routes incoming WebSocket commands to registered
// handlers based on the command type. It handles the built-in ping/pong
// keepalive internally and sends structured error responses for malformed or
// unsupported commands.
type CommandDispatcher struct {
	handlers map[string]CommandHandler
}

// NewCommandDispatcher creates an empty CommandDispatcher.
func NewCommandDispatcher() *CommandDispatcher {
	return &CommandDispatcher{
		handlers: make(map[string]CommandHandler),
	}
}

// Register associates a CommandHandler with a command type. If a handler was
// already registered for the given type, it is silently replaced.
func (d *CommandDispatcher) Register(msgType string, handler CommandHandler) {
	d.handlers[msgType] = handler
}

// Dispatch is the onMessage callback implementation. It parses the raw bytes
// into a typed command, handles ping internally, and routes all other types
// to the registered handler. Parse errors and unregistered types result in
// an error message sent back to the client.
func (d *CommandDispatcher) Dispatch(conn *Connection, data []byte) {
	msgType, msg, err := protocol.ParseCommand(data)
	if err != nil {
		log.Printf("ws: dispatch parse error conn=%s: %v", conn.ID, err)
		d.SendError(conn, "parse_error", "invalid message format")
		return
	}

	if msgType == protocol.TypePing {
		d.sendPong(conn)
		return
	}

	handler, ok := d.handlers[msgType]
	if !ok {
		log.Printf("ws: unsupported command type=%q conn=%s", msgType, conn.ID)
		d.SendError(conn, "unsupported_type", "unsupported message type")
		return
	}

	handler(conn, msg)
}

// SendError sends a structured error message back to the client. Errors
// during message construction or transmission are logged but not propagated.
func (d *CommandDispatcher) SendError(conn *Connection, code string, message string) {
	d.SendErrorKeyed(conn, code, message, "")
}

// SendErrorKeyed sends a structured error carrying the idempotency key of a
// failed send, so the client can transition its pending entry to failed.
func (d *CommandDispatcher) SendErrorKeyed(conn *Connection, code, message, clientKey string) {
	data, err := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
		Code:      code,
		Message:   message,
		ClientKey: clientKey,
	})
	if err != nil {
		log.Printf("ws: failed to build error message conn=%s: %v", conn.ID, err)
		return
	}

	if err := conn.Send(data); err != nil {
		log.Printf("ws: failed to send error message conn=%s: %v", conn.ID, err)
	}
}

// sendPong responds to a client ping with a pong message and refreshes the
// connection's read-activity timestamp.
func (d *CommandDispatcher) sendPong(conn *Connection) {
	conn.TouchPing()

	data, err := protocol.NewServerMessage(protocol.TypePong, protocol.PongMsg{})
	if err != nil {
		log.Printf("ws: failed to build pong message conn=%s: %v", conn.ID, err)
		return
	}

	if err := conn.Send(data); err != nil {
		log.Printf("ws: failed to send pong message conn=%s: %v", conn.ID, err)
	}
}
