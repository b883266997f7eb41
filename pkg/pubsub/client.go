// Package pubsub owns the Pub/Sub connection shared by the publisher relay
// and the event consumers.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iliria/erp-backend/pkg/config"
	"github.com/iliria/erp-backend/pkg/gcp"
	"github.com/iliria/erp-backend/pkg/logger"
)

const (
	topics        = "topics"
	subscriptions = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoDomainTopic     = errors.New("pubsub domain topic is required")
	errNotConnected      = errors.New("pubsub client not initialized")
)

type Client struct {
	ps      *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

// NewClient connects and verifies that the domain topic and every configured
// subscription exist. Topics and subscriptions are provisioned out of band.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcpCfg.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.DomainTopic) == "" {
		return nil, errNoDomainTopic
	}
	ps, err := pubsub.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	c := &Client{ps: ps, project: project, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", cfg.DomainTopic), "pubsub client initialized")
	}
	return c, nil
}

// Ping checks the configured resources and reports every missing one.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotConnected
	}
	err := c.checkTopic(ctx, c.cfg.DomainTopic)
	for _, sub := range c.subscriptionIDs() {
		multierr.AppendInto(&err, c.checkSubscription(ctx, sub))
	}
	return err
}

func (c *Client) subscriptionIDs() []string {
	var out []string
	for _, s := range []string{c.cfg.DomainSubscription, c.cfg.AnalyticsSubscription, c.cfg.MediaSubscription} {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Client) checkTopic(ctx context.Context, id string) error {
	_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.name(topics, id)})
	return describe("topic", id, err)
}

func (c *Client) checkSubscription(ctx context.Context, id string) error {
	_, err := c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.name(subscriptions, id)})
	return describe("subscription", id, err)
}

func describe(kind, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, id)
	default:
		return fmt.Errorf("%s %q: %w", kind, id, err)
	}
}

func (c *Client) name(collection, id string) string {
	if c == nil {
		return ""
	}
	return gcp.ResourceName(c.project, collection, id)
}

// Publisher returns a handle for topic, given as an id or a full name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	full := c.name(topics, topic)
	if full == "" || c.ps == nil {
		return nil
	}
	return c.ps.Publisher(full)
}

// Subscription returns a subscriber for an id or full name.
func (c *Client) Subscription(id string) *pubsub.Subscriber {
	full := c.name(subscriptions, id)
	if full == "" || c.ps == nil {
		return nil
	}
	return c.ps.Subscriber(full)
}

func (c *Client) DomainSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfgOrZero().DomainSubscription)
}

func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfgOrZero().AnalyticsSubscription)
}

func (c *Client) MediaSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfgOrZero().MediaSubscription)
}

func (c *Client) cfgOrZero() config.PubSubConfig {
	if c == nil {
		return config.PubSubConfig{}
	}
	return c.cfg
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}
