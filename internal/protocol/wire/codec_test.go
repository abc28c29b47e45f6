package wire

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/zerob13/canvas-sketchpad-mcp/internal/testutil/testlog"
)

func TestEncodeCanvasCommandShape(t *testing.T) {
	testlog.Start(t)
	raw, err := Encode(CanvasCommand{ID: "cmd.1", Commands: "clear()", Timestamp: 1700000000123})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["type"] != TypeCanvasCommand {
		t.Fatalf("unexpected type: %v", body["type"])
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data object: %s", raw)
	}
	if data["id"] != "cmd.1" || data["commands"] != "clear()" || data["timestamp"] != float64(1700000000123) {
		t.Fatalf("unexpected data: %#v", data)
	}
}

func TestEncodeConsumeAckKeepsFalseSuccess(t *testing.T) {
	testlog.Start(t)
	raw, err := Encode(ConsumeAck{CommandID: "cmd.1", Success: false})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(raw) != `{"type":"consume-ack","commandId":"cmd.1","success":false}` {
		t.Fatalf("unexpected ack: %s", raw)
	}
}

func TestEncodeRejectsInvalidOutbound(t *testing.T) {
	testlog.Start(t)
	if _, err := Encode(CanvasCommand{ID: "cmd.1"}); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
	if _, err := Encode(nil); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage for nil, got %v", err)
	}
}

func TestDecodeInboundVariants(t *testing.T) {
	testlog.Start(t)
	msg, err := DecodeInbound([]byte(`{"type":"command-consumed","commandId":"cmd.1"}`))
	if err != nil {
		t.Fatalf("decode consumed: %v", err)
	}
	consumed, ok := msg.(CommandConsumed)
	if !ok || consumed.CommandID != "cmd.1" {
		t.Fatalf("unexpected message: %#v", msg)
	}

	msg, err = DecodeInbound([]byte(`{"type":"command-status","commandId":"cmd.2","status":"error","error":"bad arity"}`))
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}
	status, ok := msg.(CommandStatus)
	if !ok || status.Status != StatusError || status.Error != "bad arity" || status.TargetCommand() != "cmd.2" {
		t.Fatalf("unexpected message: %#v", msg)
	}
}

func TestDecodeInboundRejects(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"unknown type", `{"type":"canvas-command","commandId":"cmd.1"}`, ErrUnknownMessageType},
		{"missing type", `{"commandId":"cmd.1"}`, ErrUnknownMessageType},
		{"missing id", `{"type":"command-consumed"}`, ErrInvalidMessage},
		{"bad status", `{"type":"command-status","commandId":"cmd.1","status":"done"}`, ErrInvalidMessage},
		{"not json", `command-consumed`, ErrInvalidMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeInbound([]byte(tc.raw)); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	huge := `{"type":"command-consumed","commandId":"` + strings.Repeat("x", MaxInboundBytes) + `"}`
	if _, err := DecodeInbound([]byte(huge)); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestProbeSideCodecMirrorsServer(t *testing.T) {
	testlog.Start(t)
	raw, err := Encode(CanvasCommand{ID: "cmd.9", Commands: "fr(1,1,2,2)", Timestamp: 42})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeOutbound(raw)
	if err != nil {
		t.Fatalf("decode outbound: %v", err)
	}
	if cmd, ok := out.(CanvasCommand); !ok || cmd.ID != "cmd.9" || cmd.Timestamp != 42 {
		t.Fatalf("unexpected outbound: %#v", out)
	}

	ackRaw, err := EncodeInbound(CommandConsumed{CommandID: "cmd.9"})
	if err != nil {
		t.Fatalf("encode inbound: %v", err)
	}
	in, err := DecodeInbound(ackRaw)
	if err != nil {
		t.Fatalf("decode inbound: %v", err)
	}
	if in.TargetCommand() != "cmd.9" {
		t.Fatalf("unexpected target: %q", in.TargetCommand())
	}

	if _, err := DecodeOutbound([]byte(`{"type":"consume-ack","commandId":"cmd.9"}`)); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected missing success rejection, got %v", err)
	}
}
