package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "atompub.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
jid = "bot@example.tld"
secret = "hunter2"
refresh_minutes = 30

[feeds.news]
url = "https://example.tld/feed.atom"
service = "pubsub.example.tld"

[feeds.blog]
url = "https://blog.tld/rss"
service = "pubsub.example.tld"
node = "custom-node"
refresh_minutes = 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bot@example.tld", cfg.JID)
	assert.Equal(t, "atompub", cfg.Resource)
	assert.Equal(t, 30*time.Minute, cfg.Refresh("news"))
	assert.Equal(t, 5*time.Minute, cfg.Refresh("blog"))

	// Node defaults to the feed's table key.
	assert.Equal(t, "news", cfg.Feeds["news"].Node)
	assert.Equal(t, "custom-node", cfg.Feeds["blog"].Node)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
jid = "file@example.tld"
secret = "from-file"

[feeds.news]
url = "https://example.tld/feed"
service = "pubsub.example.tld"
`)

	t.Setenv("XMPP_JID", "env@example.tld")
	t.Setenv("XMPP_SECRET", "from-env")
	t.Setenv("REFRESH_TIME", "15")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env@example.tld", cfg.JID)
	assert.Equal(t, "from-env", cfg.Secret)
	assert.Equal(t, 15*time.Minute, cfg.Refresh("news"))
}

func TestLoad_ValidationNamesTheField(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "missing jid",
			body:  "secret = \"s\"\n[feeds.news]\nurl = \"https://x\"\nservice = \"p\"\n",
			field: "jid",
		},
		{
			name:  "malformed jid",
			body:  "jid = \"nobody\"\nsecret = \"s\"\n[feeds.news]\nurl = \"https://x\"\nservice = \"p\"\n",
			field: "jid",
		},
		{
			name:  "missing secret",
			body:  "jid = \"a@b\"\n[feeds.news]\nurl = \"https://x\"\nservice = \"p\"\n",
			field: "secret",
		},
		{
			name:  "no feeds",
			body:  "jid = \"a@b\"\nsecret = \"s\"\n",
			field: "feeds",
		},
		{
			name:  "feed without url",
			body:  "jid = \"a@b\"\nsecret = \"s\"\n[feeds.news]\nservice = \"p\"\n",
			field: "feeds.news.url",
		},
		{
			name:  "feed without service",
			body:  "jid = \"a@b\"\nsecret = \"s\"\n[feeds.news]\nurl = \"https://x\"\n",
			field: "feeds.news.service",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)

			_, err := Load(path)
			require.Error(t, err)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("XMPP_JID", "env@example.tld")
	t.Setenv("XMPP_SECRET", "s")

	// Without a file there are no feeds, which the validator rejects —
	// env-only configuration still requires at least one feed.
	_, err := Load("")
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "feeds", vErr.Field)
}
