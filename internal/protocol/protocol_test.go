package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseCommandMessageSend(t *testing.T) {
	data := []byte(`{"type":"message.send","room_id":7,"client_key":"abc123","body":"hello"}`)

	msgType, msg, err := ParseCommand(data)
	if err != nil {
		t.Fatalf("ParseCommand returned error: %v", err)
	}
	if msgType != TypeMessageSend {
		t.Errorf("type = %q, want %q", msgType, TypeMessageSend)
	}

	m, ok := msg.(MessageSendMsg)
	if !ok {
		t.Fatalf("msg is %T, want MessageSendMsg", msg)
	}
	if m.RoomID != 7 || m.ClientKey != "abc123" || m.Body != "hello" {
		t.Errorf("unexpected payload: %+v", m)
	}
}

func TestParseCommandMissingType(t *testing.T) {
	if _, _, err := ParseCommand([]byte(`{"room_id":7}`)); err == nil {
		t.Error("expected error for message without type field")
	}
}

func TestParseCommandUnknownType(t *testing.T) {
	_, _, err := ParseCommand([]byte(`{"type":"message.created"}`))
	if err == nil {
		t.Error("expected error for a server-only type on the command path")
	}
}

func TestParseCommandRoomLeave(t *testing.T) {
	msgType, msg, err := ParseCommand([]byte(`{"type":"room.leave","room_id":7}`))
	if err != nil {
		t.Fatalf("ParseCommand returned error: %v", err)
	}
	if msgType != TypeRoomLeave {
		t.Errorf("type = %q, want %q", msgType, TypeRoomLeave)
	}
	if m := msg.(RoomLeaveMsg); m.RoomID != 7 {
		t.Errorf("room_id = %d, want 7", m.RoomID)
	}
}

func TestParseCommandInvalidJSON(t *testing.T) {
	if _, _, err := ParseCommand([]byte(`{not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseEventMessageCreated(t *testing.T) {
	data := []byte(`{"type":"message.created","message":{"id":42,"room_id":7,"creator_id":3,"client_key":"abc123","body":"hello","created_at":1700000000000}}`)

	msgType, msg, err := ParseEvent(data)
	if err != nil {
		t.Fatalf("ParseEvent returned error: %v", err)
	}
	if msgType != EventMessageCreated {
		t.Errorf("type = %q, want %q", msgType, EventMessageCreated)
	}

	ev, ok := msg.(MessageCreatedEvent)
	if !ok {
		t.Fatalf("msg is %T, want MessageCreatedEvent", msg)
	}
	if ev.Message.ID != 42 || ev.Message.RoomID != 7 || ev.Message.ClientKey != "abc123" {
		t.Errorf("unexpected payload: %+v", ev.Message)
	}
}

func TestParseEventPresence(t *testing.T) {
	for _, typ := range []string{EventConnected, EventDisconnected} {
		data := []byte(`{"type":"` + typ + `","user":3}`)
		msgType, msg, err := ParseEvent(data)
		if err != nil {
			t.Fatalf("ParseEvent(%s) returned error: %v", typ, err)
		}
		if msgType != typ {
			t.Errorf("type = %q, want %q", msgType, typ)
		}
		ev, ok := msg.(PresenceEvent)
		if !ok {
			t.Fatalf("msg is %T, want PresenceEvent", msg)
		}
		if ev.UserID != 3 {
			t.Errorf("user = %d, want 3", ev.UserID)
		}
	}
}

func TestNewServerMessageInjectsType(t *testing.T) {
	data, err := NewServerMessage(TypeError, ErrorMsg{
		Code:      "rate_limited",
		Message:   "too fast",
		ClientKey: "abc123",
	})
	if err != nil {
		t.Fatalf("NewServerMessage returned error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("result is not valid JSON: %v", err)
	}
	if decoded["type"] != TypeError {
		t.Errorf("type = %v, want %q", decoded["type"], TypeError)
	}
	if decoded["code"] != "rate_limited" || decoded["client_key"] != "abc123" {
		t.Errorf("unexpected payload: %v", decoded)
	}
}

func TestServerMessageRoundTrip(t *testing.T) {
	data, err := NewServerMessage(TypeSubscribed, SubscribedMsg{Channel: "room:7"})
	if err != nil {
		t.Fatalf("NewServerMessage returned error: %v", err)
	}

	msgType, msg, err := ParseEvent(data)
	if err != nil {
		t.Fatalf("ParseEvent returned error: %v", err)
	}
	if msgType != TypeSubscribed {
		t.Errorf("type = %q, want %q", msgType, TypeSubscribed)
	}
	if m := msg.(SubscribedMsg); m.Channel != "room:7" {
		t.Errorf("channel = %q, want %q", m.Channel, "room:7")
	}
}
