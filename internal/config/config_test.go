package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func setCritical(t *testing.T) {
	t.Setenv("SYNAPSE_JWT_SECRET", validSecret)
	t.Setenv("SYNAPSE_PUBLIC_URL", "http://localhost:3000")
	t.Setenv("SYNAPSE_PROJECT_ID", "synapse-test")
}

func TestFromEnvironment_Defaults(t *testing.T) {
	req := require.New(t)
	setCritical(t)

	cfg, err := FromEnvironment()
	req.NoError(err)

	req.Equal("3000", cfg.Port)
	req.Equal(BackendStore, cfg.BackendMode)
	req.Equal(1500*time.Millisecond, cfg.MockDelay)
	req.True(cfg.SelfContained)
	req.Equal("./public", cfg.StorageDir)
	req.False(cfg.IsHttps())
	req.NotEmpty(cfg.Warnings)
}

func TestFromEnvironment_MissingCritical(t *testing.T) {
	tests := []struct {
		name    string
		unset   []string
		missing []string
	}{
		{
			name:    "Error: Missing secret",
			unset:   []string{"SYNAPSE_JWT_SECRET"},
			missing: []string{"SYNAPSE_JWT_SECRET"},
		},
		{
			name:    "Error: Missing everything",
			unset:   []string{"SYNAPSE_JWT_SECRET", "SYNAPSE_PUBLIC_URL", "SYNAPSE_PROJECT_ID"},
			missing: []string{"SYNAPSE_JWT_SECRET", "SYNAPSE_PUBLIC_URL", "SYNAPSE_PROJECT_ID"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			setCritical(t)
			for _, key := range tc.unset {
				t.Setenv(key, "")
			}

			cfg, err := FromEnvironment()
			req.Nil(cfg)

			var cfgErr *Error
			req.True(errors.As(err, &cfgErr))
			req.Len(cfgErr.Missing, len(tc.missing))
			for _, key := range tc.missing {
				req.Contains(err.Error(), key)
			}
			req.Contains(err.Error(), "CRITICAL CONFIGURATION ERROR")
		})
	}
}

func TestFromEnvironment_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		contains string
	}{
		{"Error: Short secret", "SYNAPSE_JWT_SECRET", "short", "invalid key"},
		{"Error: Relative public url", "SYNAPSE_PUBLIC_URL", "localhost:3000", "SYNAPSE_PUBLIC_URL"},
		{"Error: Project id with path", "SYNAPSE_PROJECT_ID", "../etc", "SYNAPSE_PROJECT_ID"},
		{"Error: Unknown backend mode", "SYNAPSE_BACKEND_MODE", "firebase", "SYNAPSE_BACKEND_MODE"},
		{"Error: Unknown log level", "SYNAPSE_LOG_LEVEL", "verbose", "SYNAPSE_LOG_LEVEL"},
		{"Error: Negative worker id", "SYNAPSE_SNOWFLAKE_WORKER_ID", "-4", "SYNAPSE_SNOWFLAKE_WORKER_ID"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			setCritical(t)
			t.Setenv(tc.key, tc.value)

			_, err := FromEnvironment()
			var cfgErr *Error
			req.True(errors.As(err, &cfgErr))
			req.NotEmpty(cfgErr.Invalid)
			req.Contains(err.Error(), tc.contains)
		})
	}
}

func TestFromEnvironment_ExternalDatabaseNeedsUser(t *testing.T) {
	req := require.New(t)
	setCritical(t)
	t.Setenv("SYNAPSE_SELF_CONTAINED", "false")
	t.Setenv("SYNAPSE_DB_USER", "")

	_, err := FromEnvironment()
	req.Error(err)
	req.Contains(err.Error(), "SYNAPSE_DB_USER")
}

func TestFromEnvironment_WorkerID(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int64
		valid    bool
	}{
		{"Success: Number", "7", 7, true},
		{"Success: Zero", "0", 0, true},
		{"Error: Trailing garbage", "12abc", 0, false},
		{"Error: Not a number", "abc", 0, false},
		{"Error: Fraction", "1.5", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			setCritical(t)
			t.Setenv("SYNAPSE_SNOWFLAKE_WORKER_ID", tc.value)

			cfg, err := FromEnvironment()
			if !tc.valid {
				req.Error(err)
				req.Contains(err.Error(), "SYNAPSE_SNOWFLAKE_WORKER_ID")
				return
			}
			req.NoError(err)
			req.Equal(tc.expected, cfg.WorkerID)
		})
	}
}

func TestFromEnvironment_GoogleSignIn(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		secret  string
		enabled bool
	}{
		{"Success: Both set", "client-id", "client-secret", true},
		{"Disabled: Secret missing", "client-id", "", false},
		{"Disabled: Nothing set", "", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			setCritical(t)
			t.Setenv("SYNAPSE_PUBLIC_URL", "https://chat.example.com/")
			t.Setenv("SYNAPSE_GOOGLE_CLIENT_ID", tc.id)
			t.Setenv("SYNAPSE_GOOGLE_CLIENT_SECRET", tc.secret)

			cfg, err := FromEnvironment()
			req.NoError(err)
			req.Equal(tc.enabled, cfg.GoogleSignIn())
			req.Equal("https://chat.example.com/api/auth/google/callback", cfg.GoogleRedirectURL())

			warned := false
			for _, w := range cfg.Warnings {
				if strings.Contains(w, "SYNAPSE_GOOGLE_CLIENT_ID") {
					warned = true
				}
			}
			req.Equal(!tc.enabled, warned)
		})
	}
}
