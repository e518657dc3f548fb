package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Jon-Bright/estufa/logs"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/joeshaw/envdecode"
	"github.com/spf13/pflag"
)

const (
	QOS_AT_LEAST_ONCE = 1

	// Returned per topic in a SUBACK when the broker refuses a filter
	SUBACK_FAILURE = 0x80

	DEFAULT_URL          = "ssl://localhost:8883"
	DEFAULT_CLIENT_ID    = "ESP32_Test_Client"
	DEFAULT_KEEP_ALIVE   = 30 * time.Second
	DEFAULT_PING_TIMEOUT = 10 * time.Second
	DEFAULT_TIMEOUT      = 10 * time.Second
)

type MQTT struct {
	c       paho.Client
	log     *logs.Loggers
	timeout time.Duration

	mu            sync.Mutex
	subs          map[string]paho.MessageHandler
	everConnected bool
}

type brokerFlags struct {
	url          string
	username     string
	password     string
	clientID     string
	caCert       string
	clientCert   string
	clientKey    string
	alpn         []string
	keepAlive    time.Duration
	pingTimeout  time.Duration
	timeout      time.Duration
	cleanSession bool
}

// brokerEnv supplies flag defaults, so credentials needn't appear on
// the command line.
type brokerEnv struct {
	URL          string        `env:"ESTUFA_BROKER_URL"`
	Username     string        `env:"ESTUFA_BROKER_USERNAME"`
	Password     string        `env:"ESTUFA_BROKER_PASSWORD"`
	ClientID     string        `env:"ESTUFA_BROKER_CLIENT_ID"`
	CACert       string        `env:"ESTUFA_BROKER_CA_CERT"`
	ClientCert   string        `env:"ESTUFA_BROKER_CLIENT_CERT"`
	ClientKey    string        `env:"ESTUFA_BROKER_CLIENT_KEY"`
	ALPN         string        `env:"ESTUFA_BROKER_ALPN"`
	KeepAlive    time.Duration `env:"ESTUFA_BROKER_KEEP_ALIVE"`
	PingTimeout  time.Duration `env:"ESTUFA_BROKER_PING_TIMEOUT"`
	Timeout      time.Duration `env:"ESTUFA_BROKER_TIMEOUT"`
	CleanSession bool          `env:"ESTUFA_BROKER_CLEAN_SESSION"`
}

var bf brokerFlags

func readEnv() (*brokerEnv, error) {
	var e brokerEnv
	err := envdecode.Decode(&e)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("broker environment: %w", err)
	}
	if e.URL == "" {
		e.URL = DEFAULT_URL
	}
	if e.ClientID == "" {
		e.ClientID = DEFAULT_CLIENT_ID
	}
	if e.KeepAlive == 0 {
		e.KeepAlive = DEFAULT_KEEP_ALIVE
	}
	if e.PingTimeout == 0 {
		e.PingTimeout = DEFAULT_PING_TIMEOUT
	}
	if e.Timeout == 0 {
		e.Timeout = DEFAULT_TIMEOUT
	}
	return &e, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InitFlags registers the broker flags on fs. Defaults come from
// ESTUFA_BROKER_* environment variables where set.
func InitFlags(fs *pflag.FlagSet) error {
	e, err := readEnv()
	if err != nil {
		return err
	}
	fs.StringVar(&bf.url, "broker_url", e.URL, "MQTT broker's URL, including protocol and port")
	fs.StringVar(&bf.username, "broker_username", e.Username, "Username for MQTT broker")
	fs.StringVar(&bf.password, "broker_password", e.Password, "Password for MQTT broker")
	fs.StringVar(&bf.clientID, "broker_client_id", e.ClientID, "Client ID for MQTT broker")
	fs.StringVar(&bf.caCert, "broker_ca_cert", e.CACert, "Filename of a custom CA cert to trust from the broker")
	fs.StringVar(&bf.clientCert, "broker_client_cert", e.ClientCert, "Filename of the client certificate presented to the broker")
	fs.StringVar(&bf.clientKey, "broker_client_key", e.ClientKey, "Filename of the client certificate's private key")
	fs.StringSliceVar(&bf.alpn, "broker_alpn", splitList(e.ALPN), "ALPN protocol to offer the broker, e.g. x-amzn-mqtt-ca for AWS IoT on port 443 (repeatable)")
	fs.DurationVar(&bf.keepAlive, "broker_keep_alive", e.KeepAlive, "Interval for sending keep-alive packets to the MQTT broker")
	fs.DurationVar(&bf.pingTimeout, "broker_ping_timeout", e.PingTimeout, "Timeout after which the connection to the MQTT broker is regarded as dead")
	fs.DurationVar(&bf.timeout, "broker_timeout", e.Timeout, "How long to wait for the broker to acknowledge a connect, subscribe or publish")
	fs.BoolVar(&bf.cleanSession, "broker_clean_session", e.CleanSession, "Ask the broker to discard session state on connect")
	return nil
}

func loadCAPool(caCert string) (*x509.CertPool, error) {
	// Get the SystemCertPool, continue with an empty pool on error
	rootCAs, _ := x509.SystemCertPool()
	if rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}

	certs, err := os.ReadFile(caCert)
	if err != nil {
		return nil, fmt.Errorf("failed to append %q to root CAs: %w", caCert, err)
	}

	if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
		paho.WARN.Println("No certs appended, using system certs only")
	}
	return rootCAs, nil
}

// newTLSConfig returns nil when nothing TLS-specific was configured, in
// which case paho's defaults apply.
func newTLSConfig(f *brokerFlags) (*tls.Config, error) {
	if f.caCert == "" && f.clientCert == "" && f.clientKey == "" && len(f.alpn) == 0 {
		return nil, nil
	}
	if (f.clientCert == "") != (f.clientKey == "") {
		return nil, errors.New("client certificate and key must be given together")
	}
	config := &tls.Config{
		NextProtos: f.alpn,
	}
	if f.caCert != "" {
		pool, err := loadCAPool(f.caCert)
		if err != nil {
			return nil, err
		}
		config.RootCAs = pool
	}
	if f.clientCert != "" {
		cert, err := tls.LoadX509KeyPair(f.clientCert, f.clientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert %q / key %q: %w", f.clientCert, f.clientKey, err)
		}
		config.Certificates = []tls.Certificate{cert}
	}
	return config, nil
}

// New prepares a client from the broker flags. onConnect is called
// after every successful connection, with resumed set when this is a
// reconnection. Either handler may be nil.
func New(l *logs.Loggers, onConnect func(resumed bool), onLost func(err error)) (*MQTT, error) {
	paho.DEBUG = l.Info
	paho.WARN = l.Warn
	paho.ERROR = l.Error
	paho.CRITICAL = l.Critical

	m := &MQTT{
		log:     l,
		timeout: bf.timeout,
		subs:    map[string]paho.MessageHandler{},
	}
	opts := paho.NewClientOptions().
		AddBroker(bf.url).
		SetClientID(bf.clientID).
		SetKeepAlive(bf.keepAlive).
		SetPingTimeout(bf.pingTimeout).
		SetConnectTimeout(bf.timeout).
		SetCleanSession(bf.cleanSession).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c paho.Client) {
			m.connected(onConnect)
		}).
		SetConnectionLostHandler(func(c paho.Client, err error) {
			l.Warn.Printf("MQTT connection lost: %v", err)
			if onLost != nil {
				onLost(err)
			}
		})
	if bf.username != "" {
		opts = opts.SetUsername(bf.username)
	}
	if bf.password != "" {
		opts = opts.SetPassword(bf.password)
	}
	tlsConfig, err := newTLSConfig(&bf)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		opts = opts.SetTLSConfig(tlsConfig)
	}

	m.c = paho.NewClient(opts)
	return m, nil
}

func (m *MQTT) connected(onConnect func(resumed bool)) {
	m.mu.Lock()
	resumed := m.everConnected
	m.everConnected = true
	subs := make(map[string]paho.MessageHandler, len(m.subs))
	for t, h := range m.subs {
		subs[t] = h
	}
	m.mu.Unlock()

	m.log.Info.Printf("MQTT connected to %s, resumed %v", bf.url, resumed)
	if resumed {
		for t, h := range subs {
			err := m.subscribe(context.Background(), t, h)
			if err != nil {
				m.log.Error.Printf("Resubscribe failed: %v", err)
			}
		}
	}
	if onConnect != nil {
		onConnect(resumed)
	}
}

// wait blocks until t completes, ctx is done or the broker timeout
// passes. A done ctx yields an error wrapping ctx.Err().
func (m *MQTT) wait(ctx context.Context, t paho.Token, what string) error {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case <-t.Done():
	case <-ctx.Done():
		return fmt.Errorf("%s abandoned: %w", what, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%s timed out after %v", what, m.timeout)
	}
	err := t.Error()
	if err != nil {
		return fmt.Errorf("%s failed: %w", what, err)
	}
	return nil
}

// Connect returns early if ctx is cancelled while the broker hasn't
// answered yet.
func (m *MQTT) Connect(ctx context.Context) error {
	return m.wait(ctx, m.c.Connect(), "connect to "+bf.url)
}

func (m *MQTT) subscribe(ctx context.Context, topic string, handler paho.MessageHandler) error {
	token := m.c.Subscribe(topic, QOS_AT_LEAST_ONCE, handler)
	err := m.wait(ctx, token, fmt.Sprintf("subscribe for topic '%s'", topic))
	if err != nil {
		return err
	}
	if st, ok := token.(*paho.SubscribeToken); ok && st.Result()[topic] == SUBACK_FAILURE {
		return fmt.Errorf("broker refused subscription for topic '%s'", topic)
	}
	m.log.Info.Printf("Subscribed to '%s'", topic)
	return nil
}

// Subscribe subscribes at QoS 1. The subscription is renewed
// automatically whenever the connection is re-established.
func (m *MQTT) Subscribe(ctx context.Context, topic string, handler paho.MessageHandler) error {
	err := m.subscribe(ctx, topic, handler)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.subs[topic] = handler
	m.mu.Unlock()
	return nil
}

// Publish sends payload at QoS 1, not retained, and waits for the
// broker's acknowledgement.
func (m *MQTT) Publish(topic string, payload []byte) error {
	token := m.c.Publish(topic, QOS_AT_LEAST_ONCE, false, payload)
	err := m.wait(context.Background(), token, fmt.Sprintf("publish to '%s'", topic))
	if err != nil {
		return err
	}
	if pt, ok := token.(*paho.PublishToken); ok {
		m.log.Info.Printf("Published %d bytes to '%s', message ID %d", len(payload), topic, pt.MessageID())
	}
	return nil
}

// Disconnect waits up to quiesce milliseconds for outstanding work.
func (m *MQTT) Disconnect(quiesce uint) {
	m.c.Disconnect(quiesce)
	m.log.Info.Printf("MQTT disconnected")
}

// BrokerURL is the broker address the client was configured with.
func BrokerURL() string {
	return bf.url
}
