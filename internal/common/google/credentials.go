// Package google wraps the Analytics Data and Sheets APIs behind the small
// interfaces the agents consume.
package google

import (
	"insight-agents/internal/common/config"

	"google.golang.org/api/option"
)

// ClientOptions builds API options from config. With neither a credentials file
// nor inline JSON, application default credentials apply.
func ClientOptions(cfg config.GoogleConfig, endpoint string, scopes ...string) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if len(scopes) > 0 {
		opts = append(opts, option.WithScopes(scopes...))
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}
