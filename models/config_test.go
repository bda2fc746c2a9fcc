package models

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		AdminEmail:          "admin@example.com",
		DbType:              "SQLite",
		EnableNotifications: true,
		EncryptionKey:       strings.Repeat("e", 32),
		MediaAccessKey:      "access",
		MediaBucket:         "placeshare",
		MediaEndpoint:       "media.example.com:9000",
		MediaSecretKey:      "secret",
		SigningKey:          strings.Repeat("s", 32),
		SSLMode:             "Proxy",
		VapidPrivateKey:     "vapid-private",
		VapidPublicKey:      "vapid-public",
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		change func(*Config)
		err    string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown database", func(c *Config) { c.DbType = "oracle" }, "DBTYPE"},
		{"short signing key", func(c *Config) { c.SigningKey = "short" }, "SIGNINGKEY"},
		{"missing encryption key", func(c *Config) { c.EncryptionKey = "" }, "ENCRYPTIONKEY is required"},
		{"short encryption key", func(c *Config) { c.EncryptionKey = strings.Repeat("e", 16) }, "ENCRYPTIONKEY must be 32 characters"},
		{"long encryption key", func(c *Config) { c.EncryptionKey = strings.Repeat("e", 33) }, "ENCRYPTIONKEY must be 32 characters"},
		{"missing media credentials", func(c *Config) { c.MediaSecretKey = "" }, "MEDIASECRETKEY"},
		{"missing admin email", func(c *Config) { c.AdminEmail = "" }, "ADMINEMAIL"},
		{"missing vapid private key", func(c *Config) { c.VapidPrivateKey = "" }, "VAPID keys"},
		{"missing vapid public key", func(c *Config) { c.VapidPublicKey = "" }, "VAPID keys"},
		{"vapid keys unused without notifications", func(c *Config) {
			c.EnableNotifications = false
			c.AdminEmail = ""
			c.VapidPrivateKey = ""
			c.VapidPublicKey = ""
		}, ""},
		{"unknown ssl mode", func(c *Config) { c.SSLMode = "letsencrypt" }, "SSLMODE"},
		{"no gmaps key only warns", func(c *Config) { c.GmapAPIKey = "" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.change(&config)
			err := config.Verify()
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestVerifyNormalizesValues(t *testing.T) {
	config := validConfig()
	require.NoError(t, config.Verify())
	assert.Equal(t, "sqlite", config.DbType)
	assert.Equal(t, "proxy", config.SSLMode)
	assert.Equal(t, "http://media.example.com:9000/placeshare", config.MediaPublicURL.String())

	config = validConfig()
	config.MediaUseSSL = true
	require.NoError(t, config.Verify())
	assert.Equal(t, "https://media.example.com:9000/placeshare", config.MediaPublicURL.String())

	public, err := url.Parse("https://cdn.example.com/images")
	require.NoError(t, err)
	config = validConfig()
	config.MediaPublicURL = public
	require.NoError(t, config.Verify())
	assert.Equal(t, "https://cdn.example.com/images", config.MediaPublicURL.String())
}

func TestDefaultConfig(t *testing.T) {
	config := (&Config{}).New()
	assert.Len(t, config.SigningKey, 44)
	assert.Equal(t, "http://127.0.0.1:5000", config.RedirectDomain.String())
	assert.Equal(t, "off", config.SSLMode)
}
