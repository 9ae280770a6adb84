package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/mycodo-go/mycodo-go/pkg/driver"
)

// MQTTTransport publishes events to <prefix>/<unique_id>/<kind>.
type MQTTTransport struct {
	client driver.Publisher
	prefix string
	qos    byte
}

// NewMQTTTransport creates a transport over an existing client. The client
// is not disconnected on Close.
func NewMQTTTransport(client driver.Publisher, prefix string, qos byte) *MQTTTransport {
	return &MQTTTransport{client: client, prefix: strings.TrimSuffix(prefix, "/"), qos: qos}
}

// Send implements Transport. State messages are retained so a subscriber
// sees each output's last status on connect.
func (t *MQTTTransport) Send(ctx context.Context, key, kind string, payload []byte) error {
	topic := t.prefix + "/" + key + "/" + kind
	token := t.client.Publish(topic, t.qos, kind == "state", payload)

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish to %s: %w", topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
}

// Close implements Transport. The client is owned by the caller.
func (t *MQTTTransport) Close() error {
	return nil
}
