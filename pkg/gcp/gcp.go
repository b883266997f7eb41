// Package gcp holds the bits shared by the Google Cloud clients.
package gcp

import (
	"fmt"
	"strings"

	"google.golang.org/api/option"

	"github.com/iliria/erp-backend/pkg/config"
)

// ClientOptions picks inline credentials over a key file. With neither set
// the SDKs fall back to application default credentials.
func ClientOptions(cfg config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))}
	case strings.TrimSpace(cfg.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(cfg.ApplicationCredentials)}
	}
	return nil
}

// ResourceName expands a short id into projects/<project>/<collection>/<id>.
// Fully qualified names pass through. Blank input yields "".
func ResourceName(project, collection, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+collection+"/") {
		return name
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", project, collection, name)
}
