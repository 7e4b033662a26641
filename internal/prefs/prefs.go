// Package prefs implements the typed preferences store and config-script
// evaluator of spec.md §4.2: the in-memory Pref array, its persistence
// to non-volatile storage, and the line-oriented configuration
// language used by both the provisioning web form and (historically)
// the serial console.
package prefs

import (
	"fmt"
	"io"
	"strings"

	"snappysense.dev/firmware/internal/nvs"
)

// Flag describes the type and sensitivity of a Pref value.
type Flag int

const (
	String Flag = 1 << iota
	Integer
	Cert
	Passwd
)

// Pref is one named, typed configuration value. long_key is unique;
// short_key is unique and, per §3's invariant, never reused once
// retired — old devices may still carry a stale short key in
// non-volatile memory.
type Pref struct {
	LongKey  string
	ShortKey string
	Flags    Flag
	IntValue int32
	StrValue string
	Help     string
}

// FirmwareMajor/FirmwareMinor are the version the `version` config
// statement checks against (§4.2, schema version "2.0" in §6).
const (
	FirmwareMajor = 2
	FirmwareMinor = 0
)

func factoryDefaults() []Pref {
	return []Pref{
		{"enabled", "en", Integer, 1, "", "Device recording is enabled"},
		{"ssid1", "s1", String, 0, "", "SSID name for the first WiFi network"},
		{"ssid2", "s2", String, 0, "", "SSID name for the second WiFi network"},
		{"ssid3", "s3", String, 0, "", "SSID name for the third WiFi network"},
		{"password1", "p1", String | Passwd, 0, "", "Password for the first WiFi network"},
		{"password2", "p2", String | Passwd, 0, "", "Password for the second WiFi network"},
		{"password3", "p3", String | Passwd, 0, "", "Password for the third WiFi network"},
		{"web-config-access-point", "wcap", String, 0, "", "Unique access point name for end-user web config"},
		{"mqtt-use-tls", "tls", Integer, 0, "", "MQTT TLS connection required (requires root cert)"},
		{"mqtt-auth", "auth", String, 0, "", `MQTT authorization method, "pass" or "x509"`},
		{"mqtt-id", "aid", String, 0, "", "MQTT device ID"},
		{"mqtt-class", "acls", String, 0, "snappysense", "MQTT device class"},
		{"mqtt-endpoint-host", "ahost", String, 0, "", "MQTT endpoint host name"},
		{"mqtt-endpoint-port", "aport", Integer, 0, "", "MQTT port number (0 means apply the TLS-dependent default)"},
		{"mqtt-root-cert", "aroot", String | Cert, 0, "", "MQTT root certificate (e.g. AmazonRootCA1.pem)"},
		{"mqtt-device-cert", "acert", String | Cert, 0, "", "MQTT device certificate"},
		{"mqtt-private-key", "akey", String | Cert, 0, "", "MQTT private key"},
		{"mqtt-username", "unm", String, 0, "", "MQTT username, for user/pass connection"},
		{"mqtt-password", "pwd", String | Passwd, 0, "", "MQTT password, for user/pass connection"},
	}
}

// Store holds the in-memory Pref array. It must be initialized with
// ResetToFactory (directly or via LoadFromNonvolatile) before its
// values are used for anything sensible.
type Store struct {
	prefs []Pref
}

// NewStore returns a Store already reset to factory defaults.
func NewStore() *Store {
	s := &Store{}
	s.ResetToFactory()
	return s
}

// ResetToFactory discards all values and reloads the factory defaults.
func (s *Store) ResetToFactory() {
	s.prefs = factoryDefaults()
}

// LoadFromNonvolatile loads persisted values over the factory defaults.
// A pref with no matching entry in store falls back to its factory
// default, so newly introduced prefs behave sensibly on upgrade.
func (s *Store) LoadFromNonvolatile(store *nvs.Store) {
	s.ResetToFactory()
	for i := range s.prefs {
		p := &s.prefs[i]
		if p.Flags&Integer != 0 {
			if v, ok := store.GetInt(p.ShortKey); ok {
				p.IntValue = v
			}
			continue
		}
		if v, ok := store.GetString(p.ShortKey); ok {
			p.StrValue = v
		}
	}
}

// SaveToNonvolatile persists every current value under its short key.
func (s *Store) SaveToNonvolatile(store *nvs.Store) error {
	for _, p := range s.prefs {
		if p.Flags&Integer != 0 {
			store.SetInt(p.ShortKey, p.IntValue)
		} else {
			store.SetString(p.ShortKey, p.StrValue)
		}
	}
	return store.Save()
}

// Get returns the Pref named by longKey.
func (s *Store) Get(longKey string) (Pref, bool) {
	for _, p := range s.prefs {
		if p.LongKey == longKey {
			return p, true
		}
	}
	return Pref{}, false
}

func (s *Store) index(longKey string) int {
	for i := range s.prefs {
		if s.prefs[i].LongKey == longKey {
			return i
		}
	}
	return -1
}

// SetString assigns a string/cert-typed pref. Returns an error for an
// unknown name or a name that isn't string-typed.
func (s *Store) SetString(longKey, value string) error {
	i := s.index(longKey)
	if i < 0 {
		return fmt.Errorf("prefs: unknown name %q", longKey)
	}
	if s.prefs[i].Flags&String == 0 {
		return fmt.Errorf("prefs: %q is not a string value", longKey)
	}
	s.prefs[i].StrValue = value
	return nil
}

// SetInt assigns an integer-typed pref.
func (s *Store) SetInt(longKey string, value int32) error {
	i := s.index(longKey)
	if i < 0 {
		return fmt.Errorf("prefs: unknown name %q", longKey)
	}
	if s.prefs[i].Flags&Integer == 0 {
		return fmt.Errorf("prefs: %q is not an integer value", longKey)
	}
	s.prefs[i].IntValue = value
	return nil
}

// All returns a copy of the current preference values.
func (s *Store) All() []Pref {
	out := make([]Pref, len(s.prefs))
	copy(out, s.prefs)
	return out
}

// Show writes a redacted listing: passwords elided to their first
// character, certificates elided to their first body line, exactly as
// §4.2 specifies.
func (s *Store) Show(w io.Writer) error {
	for _, p := range s.prefs {
		val := p.StrValue
		switch {
		case p.Flags&Passwd != 0:
			if len(val) > 0 {
				val = val[:1] + strings.Repeat("*", len(val)-1)
			}
		case p.Flags&Cert != 0:
			// cert_first_line in the original skips past the
			// "-----BEGIN ...-----" header -- identical for every
			// cert -- and shows the line after it instead.
			if _, rest, ok := strings.Cut(val, "\n"); ok {
				if line, _, ok := strings.Cut(rest, "\n"); ok {
					val = line + " ..."
				} else {
					val = rest + " ..."
				}
			}
		case p.Flags&Integer != 0:
			val = fmt.Sprintf("%d", p.IntValue)
		}
		if _, err := fmt.Fprintf(w, "%s (%s) = %s\n", p.LongKey, p.ShortKey, val); err != nil {
			return err
		}
	}
	return nil
}

// MQTTEndpointPort returns the effective port: the stored value if
// nonzero, else the TLS-dependent default (8883 if mqtt-use-tls is set,
// else 1883). Per the resolved open question in DESIGN.md, 0 is always
// "unset, apply default" — it is not a valid user-chosen port.
func (s *Store) MQTTEndpointPort() int {
	port, _ := s.Get("mqtt-endpoint-port")
	if port.IntValue != 0 {
		return int(port.IntValue)
	}
	tls, _ := s.Get("mqtt-use-tls")
	if tls.IntValue != 0 {
		return 8883
	}
	return 1883
}
