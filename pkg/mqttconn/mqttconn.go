package mqttconn

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/AdakHaddad/capdash/internal/model"
)

// Config describes the broker session. When BrokerURL is empty the scheme
// is chosen from Secure: hosted brokers behind TLS reject plain tcp before
// any application logic runs, so the default must match the deployment.
type Config struct {
	BrokerURL string // explicit override, e.g. ssl://host:8883
	Host      string
	Port      int
	Username  string
	Password  string
	ClientID  string
	Secure    bool
}

// URL resolves the broker address, logging a warning (not failing silently)
// when an explicit override would violate the secure deployment.
func (c Config) URL() string {
	if c.BrokerURL != "" {
		if u, err := url.Parse(c.BrokerURL); err == nil {
			insecure := u.Scheme == "tcp" || u.Scheme == "mqtt" || u.Scheme == "ws"
			if c.Secure && insecure {
				log.Printf("mqtt: WARN broker override %q uses insecure scheme %q on a secure deployment; the connection may be rejected",
					c.BrokerURL, u.Scheme)
			}
		}
		return c.BrokerURL
	}
	scheme, port := "tcp", c.Port
	if c.Secure || c.Username != "" {
		scheme = "ssl"
		if port == 0 {
			port = 8883
		}
	} else if port == 0 {
		port = 1883
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, port)
}

// Subscription is one topic the manager keeps subscribed across reconnects.
type Subscription struct {
	Topic   string
	QoS     byte
	Handler func(topic string, payload []byte)
}

// Manager owns the single long-lived broker session. Retry timing after a
// lost connection is delegated to paho's reconnect policy; the manager owns
// what happens on each transition: status reporting and idempotent
// resubscription of the fixed topic set.
type Manager struct {
	cfg    Config
	client mqtt.Client

	mu     sync.RWMutex
	status model.ConnStatus
	subs   []Subscription

	onStatus func(model.ConnStatus, string)
}

func NewManager(cfg Config, onStatus func(model.ConnStatus, string)) *Manager {
	return &Manager{cfg: cfg, status: model.ConnIdle, onStatus: onStatus}
}

// Subscribe registers a topic for the lifetime of the manager. When already
// connected the subscription is issued immediately as well.
func (m *Manager) Subscribe(sub Subscription) {
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	client := m.client
	connected := m.status == model.ConnConnected
	m.mu.Unlock()

	if connected && client != nil {
		m.subscribeOne(client, sub)
	}
}

// clientOptions builds the primary session options. ConnectRetry is what
// keeps a broker that is down at startup from stranding the manager: paho's
// AutoReconnect only covers sessions that connected at least once.
func (m *Manager) clientOptions(addr string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(addr).
		SetClientID(m.cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		m.setStatus(model.ConnConnected, "")
		m.resubscribe(c)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.setStatus(model.ConnError, err.Error())
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		m.setStatus(model.ConnReconnecting, "")
	})
	return opts
}

// Start opens the session and waits briefly for the first connect. When the
// broker is unreachable the call returns without error: paho keeps retrying
// the connect in the background and the OnConnect handler finishes setup
// (status + subscriptions) whenever it eventually succeeds.
func (m *Manager) Start(ctx context.Context) error {
	addr := m.cfg.URL()
	client := mqtt.NewClient(m.clientOptions(addr))

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
	m.setStatus(model.ConnConnecting, "")

	token := client.Connect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		if err := token.Error(); err != nil {
			m.setStatus(model.ConnError, err.Error())
			return fmt.Errorf("mqtt: connect to %s: %w", addr, err)
		}
		log.Printf("mqtt: connected to %s", addr)
		return nil
	case <-time.After(initialConnectWait):
		log.Printf("mqtt: connect to %s still pending, retrying in background", addr)
		return nil
	}
}

const initialConnectWait = 15 * time.Second

// Stop is the only true terminal transition: a deliberate shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()
	if client != nil {
		// also aborts a still-pending ConnectRetry loop
		client.Disconnect(250)
	}
	m.setStatus(model.ConnDisconnected, "")
	log.Printf("mqtt: connection closed")
}

// resubscribe re-issues every registered subscription unconditionally: a
// reconnect after network loss must not assume prior subscription state
// survived the outage.
func (m *Manager) resubscribe(c mqtt.Client) {
	m.mu.RLock()
	subs := make([]Subscription, len(m.subs))
	copy(subs, m.subs)
	m.mu.RUnlock()
	for _, sub := range subs {
		m.subscribeOne(c, sub)
	}
}

// subscribeOne subscribes a single topic. A failed subscription leaves the
// session running in a degraded state; it is logged, not fatal.
func (m *Manager) subscribeOne(c mqtt.Client, sub Subscription) {
	handler := sub.Handler
	token := c.Subscribe(sub.Topic, sub.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		log.Printf("mqtt: subscribe %s failed: %v", sub.Topic, token.Error())
		return
	}
	log.Printf("mqtt: subscribed to %s (qos=%d)", sub.Topic, sub.QoS)
}

// Publish sends one message on the live session.
func (m *Manager) Publish(topic string, qos byte, retained bool, payload string) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("mqtt: not connected")
	}
	token := client.Publish(topic, qos, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", topic, token.Error())
	}
	return nil
}

func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil && m.client.IsConnected()
}

func (m *Manager) Status() model.ConnStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s model.ConnStatus, detail string) {
	m.mu.Lock()
	m.status = s
	cb := m.onStatus
	m.mu.Unlock()
	if detail != "" {
		log.Printf("mqtt: status=%s (%s)", s, truncate(detail, 120))
	} else {
		log.Printf("mqtt: status=%s", s)
	}
	if cb != nil {
		cb(s, detail)
	}
}

// PublishOnce opens a throwaway session for a single fire-and-forget
// publish, used by the HTTP relay when the primary session is unavailable.
// The session has no retry policy of its own, so a transient connect failure
// is retried here with backoff; it is always closed after the one operation.
func PublishOnce(cfg Config, topic string, qos byte, payload string, timeout time.Duration) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL()).
		SetClientID(cfg.ClientID + "-relay").
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectTimeout(timeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = timeout
	return backoff.Retry(func() error {
		client := mqtt.NewClient(opts)
		defer client.Disconnect(100)

		if token := client.Connect(); !token.WaitTimeout(timeout) || token.Error() != nil {
			if token.Error() != nil {
				return fmt.Errorf("mqtt: relay connect: %w", token.Error())
			}
			return fmt.Errorf("mqtt: relay connect timed out after %s", timeout)
		}
		token := client.Publish(topic, qos, false, payload)
		if !token.WaitTimeout(timeout) || token.Error() != nil {
			if token.Error() != nil {
				return fmt.Errorf("mqtt: relay publish to %s: %w", topic, token.Error())
			}
			return fmt.Errorf("mqtt: relay publish to %s timed out", topic)
		}
		return nil
	}, backoff.WithMaxRetries(bo, 2))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
