package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliria/erp-backend/pkg/config"
)

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	_, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{DomainTopic: "t"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{DomainTopic: " "}, nil)
	require.ErrorIs(t, err, errNoDomainTopic)
}

func TestSubscriptionIDsSkipBlank(t *testing.T) {
	c := &Client{cfg: config.PubSubConfig{DomainSubscription: "domain", MediaSubscription: " "}}
	assert.Equal(t, []string{"domain"}, c.subscriptionIDs())
}

func TestNameUsesProject(t *testing.T) {
	c := &Client{project: "iliria-prod"}
	assert.Equal(t, "projects/iliria-prod/topics/domain-events", c.name(topics, "domain-events"))
	assert.Equal(t, "projects/iliria-prod/subscriptions/media", c.name(subscriptions, "media"))
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("domain-events"))
	assert.Nil(t, c.AnalyticsSubscription())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotConnected)
	assert.NoError(t, c.Close())

	disconnected := &Client{project: "p"}
	assert.Nil(t, disconnected.Subscription("s"))
}
