// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"care-assistant/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client used by the optional answer-question worker.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
}

// NewClientWithConfig dials the gateway and checks the topology before returning.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, mapZeebeError(err, "topology")
	}

	return &Client{client: zeebeClient, config: config}, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return mapZeebeError(err, "health")
	}
	return nil
}

// mapZeebeError converts gateway errors into StandardErrors.
func mapZeebeError(err error, operation string) error {
	msg := err.Error()
	lowerMsg := strings.ToLower(msg)
	wrapped := fmt.Errorf("zeebe operation '%s' failed: %s", operation, msg)

	switch {
	case strings.Contains(lowerMsg, "timeout"),
		strings.Contains(lowerMsg, "deadline exceeded"):
		return errors.NewTimeoutError("zeebe", wrapped)
	case strings.Contains(lowerMsg, "permission denied"),
		strings.Contains(lowerMsg, "unauthorized"),
		strings.Contains(lowerMsg, "unauthenticated"):
		return errors.NewAuthenticationError(wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}
