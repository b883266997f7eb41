package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliria/erp-backend/pkg/config"
)

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	assert.Len(t, ClientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Len(t, ClientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}), 1)
	assert.Empty(t, ClientOptions(config.GCPConfig{CredentialsJSON: "  "}))
}

func TestResourceName(t *testing.T) {
	cases := []struct{ project, collection, name, want string }{
		{"iliria-prod", "topics", "domain-events", "projects/iliria-prod/topics/domain-events"},
		{"iliria-prod", "topics", "projects/other/topics/t", "projects/other/topics/t"},
		{"iliria-prod", "subscriptions", " analytics ", "projects/iliria-prod/subscriptions/analytics"},
		{"iliria-prod", "topics", "  ", ""},
		{"", "topics", "t", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResourceName(tc.project, tc.collection, tc.name), tc.name)
	}
}
