package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected func(*Config)
		wantErr  bool
	}{
		{
			name: "all short flags",
			args: []string{
				"-a", "127.0.0.1:9090", "-g", ":6000", "-d", "db", "-s", "secret", "-t", "60",
				"-f", "https://app.example", "-b", "https://api.example", "-m", "amqp", "-e", "prod",
			},
			expected: func(c *Config) {
				c.EndpointAddrHTTP = "127.0.0.1:9090"
				c.EndpointAddrGRPC = ":6000"
				c.DatabaseDSN = "db"
				c.SecretKey = "secret"
				c.SessionTokenTTL = time.Hour
				c.FrontendURL = "https://app.example"
				c.APIBaseURL = "https://api.example"
				c.MailTransport = MailTransportAMQP
				c.Env = "prod"
			},
		},
		{
			name:     "foreign flags are ignored",
			args:     []string{"-c", "cfg.json", "-x", "1", "-s", "k"},
			expected: func(c *Config) { c.SecretKey = "k" },
		},
		{
			name:    "unknown mail transport",
			args:    []string{"-m", "pigeon"},
			wantErr: true,
		},
		{
			name:    "non-positive ttl",
			args:    []string{"-t", "0"},
			wantErr: true,
		},
		{
			name:    "ttl not a number",
			args:    []string{"-t", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			err := parseFlags(c, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			want := defaults()
			tt.expected(want)
			assert.Empty(t, cmp.Diff(want, c))
		})
	}
}
