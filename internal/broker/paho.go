package broker

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// PahoTransport is the production Transport, wrapping
// github.com/eclipse/paho.mqtt.golang. Configure builds the
// ClientOptions (TLS material, client id, clean session) but does not
// dial; Connect performs one blocking dial attempt with a short
// deadline so the broker state machine's retry loop stays in control of
// backoff, matching how the original firmware's single mqtt_client.connect()
// call is retried from the main loop rather than by the MQTT library itself.
type PahoTransport struct {
	opts   *mqtt.ClientOptions
	client mqtt.Client
	inbox  chan<- InboundMessage
}

// NewPahoTransport returns a PahoTransport that delivers subscribed
// messages on inbox.
func NewPahoTransport(inbox chan<- InboundMessage) *PahoTransport {
	return &PahoTransport{inbox: inbox}
}

func (t *PahoTransport) Configure(cfg Config) error {
	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))
	opts.SetClientID(cfg.DeviceID)
	opts.SetCleanSession(false)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(5 * time.Second)

	switch cfg.Auth {
	case "pass":
		if cfg.Username == "" {
			return fmt.Errorf("broker: mqtt-auth=pass requires mqtt-username")
		}
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	case "x509":
		tlsCfg, err := certificateTLSConfig(cfg)
		if err != nil {
			return fmt.Errorf("broker: x509 config: %w", err)
		}
		opts.SetTLSConfig(tlsCfg)
	default:
		return fmt.Errorf("broker: unrecognized mqtt-auth %q", cfg.Auth)
	}

	if cfg.UseTLS && cfg.Auth == "pass" {
		tlsCfg, err := rootCATLSConfig(cfg)
		if err != nil {
			return fmt.Errorf("broker: root CA config: %w", err)
		}
		opts.SetTLSConfig(tlsCfg)
	}

	t.opts = opts
	return nil
}

func (t *PahoTransport) Connect() error {
	t.client = mqtt.NewClient(t.opts)
	token := t.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("broker: connect timed out")
	}
	return token.Error()
}

func (t *PahoTransport) Connected() bool {
	return t.client != nil && t.client.IsConnected()
}

func (t *PahoTransport) Disconnect() {
	if t.client != nil {
		t.client.Disconnect(250)
	}
}

func (t *PahoTransport) Publish(topic string, qos byte, payload []byte) error {
	token := t.client.Publish(topic, qos, false, payload)
	token.Wait()
	return token.Error()
}

func (t *PahoTransport) Subscribe(topic string, qos byte) error {
	token := t.client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		t.inbox <- InboundMessage{Topic: m.Topic(), Payload: m.Payload()}
	})
	token.Wait()
	return token.Error()
}

func rootCATLSConfig(cfg Config) (*tls.Config, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(cfg.RootCert)) {
		return nil, fmt.Errorf("no valid certificates in mqtt-root-cert")
	}
	return &tls.Config{RootCAs: pool}, nil
}

func certificateTLSConfig(cfg Config) (*tls.Config, error) {
	pool := x509.NewCertPool()
	if cfg.RootCert != "" && !pool.AppendCertsFromPEM([]byte(cfg.RootCert)) {
		return nil, fmt.Errorf("no valid certificates in mqtt-root-cert")
	}
	cert, err := tls.X509KeyPair([]byte(cfg.DeviceCert), []byte(cfg.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("device certificate/key: %w", err)
	}
	return &tls.Config{RootCAs: pool, Certificates: []tls.Certificate{cert}}, nil
}
