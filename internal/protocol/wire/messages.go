package wire

import (
	"errors"
	"fmt"
	"strings"
)

const (
	TypeCanvasCommand   = "canvas-command"
	TypeConsumeAck      = "consume-ack"
	TypeCommandConsumed = "command-consumed"
	TypeCommandStatus   = "command-status"

	StatusExecuted = "executed"
	StatusError    = "error"

	MaxInboundBytes = 64 * 1024
)

var (
	ErrUnknownMessageType = errors.New("wire: unknown message type")
	ErrInvalidMessage     = errors.New("wire: invalid message")
	ErrMessageTooLarge    = errors.New("wire: message too large")
)

// Outbound is a message pushed to a rendering client.
type Outbound interface {
	MessageType() string
	outbound()
}

// Inbound is a message received from a rendering client.
type Inbound interface {
	MessageType() string
	TargetCommand() string
	inbound()
}

// CanvasCommand pushes one ledger command to a client.
type CanvasCommand struct {
	ID        string
	Commands  string
	Timestamp int64 // unix milliseconds
}

func (CanvasCommand) MessageType() string { return TypeCanvasCommand }
func (CanvasCommand) outbound()           {}

func (m CanvasCommand) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: canvas-command missing id", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Commands) == "" {
		return fmt.Errorf("%w: canvas-command missing commands", ErrInvalidMessage)
	}
	return nil
}

// ConsumeAck answers a command-consumed message.
type ConsumeAck struct {
	CommandID string
	Success   bool
}

func (ConsumeAck) MessageType() string { return TypeConsumeAck }
func (ConsumeAck) outbound()           {}

func (m ConsumeAck) Validate() error {
	if strings.TrimSpace(m.CommandID) == "" {
		return fmt.Errorf("%w: consume-ack missing commandId", ErrInvalidMessage)
	}
	return nil
}

// CommandConsumed reports that a client applied a command.
type CommandConsumed struct {
	CommandID string
}

func (CommandConsumed) MessageType() string     { return TypeCommandConsumed }
func (m CommandConsumed) TargetCommand() string { return m.CommandID }
func (CommandConsumed) inbound()                {}

func (m CommandConsumed) Validate() error {
	if strings.TrimSpace(m.CommandID) == "" {
		return fmt.Errorf("%w: command-consumed missing commandId", ErrInvalidMessage)
	}
	return nil
}

// CommandStatus reports the execution outcome of a command.
type CommandStatus struct {
	CommandID string
	Status    string
	Error     string
}

func (CommandStatus) MessageType() string     { return TypeCommandStatus }
func (m CommandStatus) TargetCommand() string { return m.CommandID }
func (CommandStatus) inbound()                {}

func (m CommandStatus) Validate() error {
	if strings.TrimSpace(m.CommandID) == "" {
		return fmt.Errorf("%w: command-status missing commandId", ErrInvalidMessage)
	}
	switch m.Status {
	case StatusExecuted, StatusError:
		return nil
	default:
		return fmt.Errorf("%w: command-status invalid status %q", ErrInvalidMessage, m.Status)
	}
}
