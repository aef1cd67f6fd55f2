package mqtt

import (
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	customlog "github.com/open-teleop/robobag/pkg/log"
)

// Client is the subset of an MQTT client the subscriber needs. It
// exists so the subscriber can be exercised against a fake in tests.
type Client interface {
	// SetConnectHandler registers a hook that fires on every
	// successful connection, including automatic reconnects. Must be
	// called before Connect.
	SetConnectHandler(onConnect func())

	// SetConnectionLostHandler registers a hook for dropped connections.
	SetConnectionLostHandler(onLost func(error))

	// Connect establishes the session and blocks until it is up or failed.
	Connect() error

	// Subscribe registers a message handler for a topic filter.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// Disconnect closes the session, waiting up to quiesceMs for
	// in-flight work.
	Disconnect(quiesceMs uint)

	IsConnected() bool
}

// PahoClient implements Client on top of the Eclipse Paho library.
type PahoClient struct {
	opts   *pahomqtt.ClientOptions
	client pahomqtt.Client
	url    string
	logger customlog.Logger
}

var _ Client = (*PahoClient)(nil)

// NewPahoClient prepares a client for the given broker URL
// (e.g. tcp://localhost:1883). The 60s keepalive matches the historical
// listener; reconnect handling is left entirely to the library.
func NewPahoClient(brokerURL string, logger customlog.Logger) *PahoClient {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(true)

	return &PahoClient{opts: opts, url: brokerURL, logger: logger}
}

func (c *PahoClient) SetConnectHandler(onConnect func()) {
	c.opts.SetOnConnectHandler(func(pahomqtt.Client) {
		onConnect()
	})
}

func (c *PahoClient) SetConnectionLostHandler(onLost func(error)) {
	c.opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		onLost(err)
	})
}

func (c *PahoClient) Connect() error {
	c.logger.Debugf("Connecting to broker %s", c.url)
	c.client = pahomqtt.NewClient(c.opts)
	token := c.client.Connect()
	token.Wait()
	return token.Error()
}

func (c *PahoClient) Subscribe(topic string, qos byte, handler func(string, []byte)) error {
	token := c.client.Subscribe(topic, qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

func (c *PahoClient) Disconnect(quiesceMs uint) {
	if c.client != nil {
		c.client.Disconnect(quiesceMs)
	}
}

func (c *PahoClient) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}
