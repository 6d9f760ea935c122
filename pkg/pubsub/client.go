package pubsub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Syntia28/nikos/pkg/config"
	"github.com/Syntia28/nikos/pkg/logger"
)

const emulatorEnv = "PUBSUB_EMULATOR_HOST"

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub events topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client owns the connection to the storefront events topic that order.created
// and rating.submitted are forwarded to.
type Client struct {
	client   *pubsub.Client
	topic    string
	emulated bool
}

// NewClient connects and checks the events topic. Against the emulator a
// missing topic is created.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topic := topicResourceName(projectID, cfg.EventsTopic)
	if topic == "" {
		return nil, errNoTopic
	}
	emulated := strings.TrimSpace(cfg.EmulatorHost) != ""
	if emulated {
		if err := os.Setenv(emulatorEnv, strings.TrimSpace(cfg.EmulatorHost)); err != nil {
			return nil, fmt.Errorf("set %s: %w", emulatorEnv, err)
		}
	}

	psClient, err := pubsub.NewClient(ctx, projectID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, topic: topic, emulated: emulated}
	if err := c.ensureTopic(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"topic": topic, "emulator": emulated}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) ensureTopic(ctx context.Context) error {
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		return fmt.Errorf("checking topic %q: %w", c.topic, err)
	case !c.emulated:
		return fmt.Errorf("topic %q does not exist", c.topic)
	}
	if _, err := c.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: c.topic}); err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating emulator topic %q: %w", c.topic, err)
	}
	return nil
}

// EventsPublisher is handed to the event bus forwarder.
func (c *Client) EventsPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Publisher(c.topic)
}

// Ping is the readiness check: the events topic must still be reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	return err
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// topicResourceName expands a bare topic id to projects/<project>/topics/<id>.
// Full resource names pass through unchanged.
func topicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	if projectID = strings.TrimSpace(projectID); projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + n
}
