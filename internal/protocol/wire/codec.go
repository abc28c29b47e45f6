package wire

import (
	"encoding/json"
	"fmt"
)

type canvasData struct {
	ID        string `json:"id"`
	Commands  string `json:"commands"`
	Timestamp int64  `json:"timestamp"`
}

type envelope struct {
	Type      string      `json:"type"`
	Data      *canvasData `json:"data,omitempty"`
	CommandID string      `json:"commandId,omitempty"`
	Success   *bool       `json:"success,omitempty"`
	Status    string      `json:"status,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Encode renders an outbound message as one JSON document.
func Encode(msg Outbound) ([]byte, error) {
	var env envelope
	switch m := msg.(type) {
	case CanvasCommand:
		if err := m.Validate(); err != nil {
			return nil, err
		}
		env = envelope{
			Type: TypeCanvasCommand,
			Data: &canvasData{ID: m.ID, Commands: m.Commands, Timestamp: m.Timestamp},
		}
	case ConsumeAck:
		if err := m.Validate(); err != nil {
			return nil, err
		}
		success := m.Success
		env = envelope{Type: TypeConsumeAck, CommandID: m.CommandID, Success: &success}
	case nil:
		return nil, fmt.Errorf("%w: nil outbound message", ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.MessageType())
	}
	return json.Marshal(env)
}

// EncodeInbound renders a client-side message; used by probe clients.
func EncodeInbound(msg Inbound) ([]byte, error) {
	var env envelope
	switch m := msg.(type) {
	case CommandConsumed:
		if err := m.Validate(); err != nil {
			return nil, err
		}
		env = envelope{Type: TypeCommandConsumed, CommandID: m.CommandID}
	case CommandStatus:
		if err := m.Validate(); err != nil {
			return nil, err
		}
		env = envelope{Type: TypeCommandStatus, CommandID: m.CommandID, Status: m.Status, Error: m.Error}
	case nil:
		return nil, fmt.Errorf("%w: nil inbound message", ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.MessageType())
	}
	return json.Marshal(env)
}

// DecodeInbound parses one client message and validates its fields.
func DecodeInbound(data []byte) (Inbound, error) {
	if len(data) > MaxInboundBytes {
		return nil, ErrMessageTooLarge
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case TypeCommandConsumed:
		msg := CommandConsumed{CommandID: env.CommandID}
		if err := msg.Validate(); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeCommandStatus:
		msg := CommandStatus{CommandID: env.CommandID, Status: env.Status, Error: env.Error}
		if err := msg.Validate(); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
}

// DecodeOutbound parses one server message; used by probe clients.
func DecodeOutbound(data []byte) (Outbound, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	switch env.Type {
	case TypeCanvasCommand:
		if env.Data == nil {
			return nil, fmt.Errorf("%w: canvas-command missing data", ErrInvalidMessage)
		}
		msg := CanvasCommand{ID: env.Data.ID, Commands: env.Data.Commands, Timestamp: env.Data.Timestamp}
		if err := msg.Validate(); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeConsumeAck:
		if env.Success == nil {
			return nil, fmt.Errorf("%w: consume-ack missing success", ErrInvalidMessage)
		}
		msg := ConsumeAck{CommandID: env.CommandID, Success: *env.Success}
		if err := msg.Validate(); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return env, nil
}
