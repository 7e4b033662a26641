package broker

import (
	"encoding/json"
	"log"
	"strings"

	"snappysense.dev/firmware/internal/bus"
)

// controlMessage is the subset of fields recognized on snappy/control/*
// topics (§4.6). Unknown fields are ignored by construction since we
// only look up the keys we understand.
type controlMessage struct {
	Version  *string `json:"version"`
	Enable   *int    `json:"enable"`
	Interval *uint32 `json:"interval"`
}

func (c *Client) handleInbound(msg InboundMessage) {
	if len(msg.Payload) > MaxIncomingMessageSize {
		log.Printf("broker: incoming message too long, %d bytes, discarded", len(msg.Payload))
		return
	}
	switch {
	case strings.HasPrefix(msg.Topic, "snappy/control/"),
		strings.HasPrefix(msg.Topic, "snappy/control-class/"),
		msg.Topic == "snappy/control-all":
		c.handleControl(msg.Payload)
	case strings.HasPrefix(msg.Topic, "snappy/command/"):
		log.Printf("broker: command messages are reserved, discarded: %s", msg.Topic)
	default:
		log.Printf("broker: unknown incoming topic %s", msg.Topic)
	}
}

func (c *Client) handleControl(payload []byte) {
	var m controlMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		log.Printf("broker: invalid control message: %v", err)
		return
	}
	fields := 0
	if m.Enable != nil {
		if *m.Enable != 0 {
			c.bus.Post(bus.EnableDevice)
		} else {
			c.bus.Post(bus.DisableDevice)
		}
		fields++
	}
	if m.Interval != nil {
		c.bus.PostScalar(bus.SetInterval, *m.Interval)
		fields++
	}
	if fields == 0 {
		log.Printf("broker: invalid control message\n%s", payload)
	}
}
