package canvas

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zerob13/canvas-sketchpad-mcp/internal/validate"
)

var ErrInvalidDeliveryMode = errors.New("canvas: invalid delivery mode")

// DeliveryMode selects when a submitted command leaves pending.
type DeliveryMode string

const (
	// DeliveryAck keeps a command pending until a client receives it.
	DeliveryAck DeliveryMode = "ack"
	// DeliveryOptimistic marks a command sent as soon as it is accepted.
	// A command accepted while no client is connected is never replayed.
	DeliveryOptimistic DeliveryMode = "optimistic"
)

func ParseDeliveryMode(raw string) (DeliveryMode, error) {
	switch DeliveryMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DeliveryAck:
		return DeliveryAck, nil
	case DeliveryOptimistic:
		return DeliveryOptimistic, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDeliveryMode, raw)
	}
}

type Config struct {
	DeliveryMode DeliveryMode
	Validator    validate.Validator
}

func DefaultConfig() Config {
	return Config{
		DeliveryMode: DeliveryAck,
		Validator:    validate.NewStructural(validate.DefaultMaxPayloadBytes),
	}
}

func (c Config) withDefaults() Config {
	if c.DeliveryMode == "" {
		c.DeliveryMode = DeliveryAck
	}
	if c.Validator == nil {
		c.Validator = validate.NewStructural(validate.DefaultMaxPayloadBytes)
	}
	return c
}
