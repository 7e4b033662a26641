package broker

import (
	"encoding/json"
	"fmt"

	"snappysense.dev/firmware/internal/sensors"
)

// factorKeys maps each Factor onto its `F#<factor>` JSON key suffix
// (§6). Order doesn't matter for encoding; it exists once, here.
var factorKeys = map[sensors.Factor]string{
	sensors.Temperature: "temperature",
	sensors.Humidity:    "humidity",
	sensors.UV:          "uv",
	sensors.Illuminance: "light",
	sensors.Pressure:    "pressure",
	sensors.Altitude:    "altitude",
	sensors.AirQuality:  "airquality",
	sensors.TVOC:        "tvoc",
	sensors.ECO2:        "co2",
	sensors.Motion:      "motion",
	sensors.Noise:       "noise",
}

// encodeObservation builds the snappy/observation/<class>/<id> payload
// (§6): sequenceno, sent, and one F#<factor> entry per valid reading.
// clockDelta is added to the snapshot's (possibly uncorrected) UnixTime
// unconditionally: unlike the original firmware, which adjusts the OS
// clock itself via settimeofday once NTP succeeds, this implementation
// never mutates the OS clock (see timeservice.SystemClock), so every
// observation -- not just ones captured before the clock was
// synchronized -- needs the correction applied at encode time.
func (c *Client) encodeObservation(snap *sensors.Snapshot) outboundMessage {
	topic := fmt.Sprintf("snappy/observation/%s/%s", c.cfg.DeviceClass, c.cfg.DeviceID)

	fields := map[string]any{
		"sequenceno": snap.Sequence,
		"sent":       snap.UnixTime + c.clockDelta,
	}
	for factor, key := range factorKeys {
		v, ok := snap.Float(factor)
		if !ok {
			continue
		}
		fields["F#"+key] = v
	}

	body, _ := json.Marshal(fields)
	return outboundMessage{Topic: topic, Payload: body}
}
