package models

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"
)

// Config holds all the application config values.
// Not really a classical model since not saved into DB.
type Config struct {
	AdminEmail          string        // ADMINEMAIL
	AuthRateLimit       int           // AUTHRATELIMIT, signup/login requests per minute and IP
	CorsOrigins         []string      // CORSORIGINS
	Debug               bool          // DEBUG
	Port                int           // PORT
	Host                string        // HOST
	DbType              string        // DBTYPE
	DbDSN               string        // DBDSN
	EnableNotifications bool          // ENABLENOTIFICATIONS
	EncryptionKey       string        // ENCRYPTIONKEY
	GmapAPIKey          string        // GMAPAPIKEY
	GeocodeTimeout      time.Duration // GEOCODETIMEOUT
	MaxBodySize         int64         // MAXBODYSIZE
	MaxUploadSize       int64         // MAXUPLOADSIZE
	MediaEndpoint       string        // MEDIAENDPOINT
	MediaAccessKey      string        // MEDIAACCESSKEY
	MediaSecretKey      string        // MEDIASECRETKEY
	MediaBucket         string        // MEDIABUCKET
	MediaUseSSL         bool          // MEDIAUSESSL
	MediaPublicURL      *url.URL      // MEDIAPUBLICURL
	OriginalIPHeader    string        // ORIGINALIPHEADER, for example X-Forwarded-For when behind a reverse proxy
	PushTTL             int           // PUSHTTL, in seconds
	PushTimeout         time.Duration // PUSHTIMEOUT
	RedirectDomain      *url.URL      // REDIRECTDOMAIN
	SigningKey          string        // SIGNINGKEY
	SSLMode             string        // SSLMODE
	SSLAutoCertsDir     string        // SSLAUTOCERTSDIR
	SSLCustomCertPath   string        // SSLCUSTOMCERTPATH
	SSLCustomKeyPath    string        // SSLCUSTOMKEYPATH
	TokenValidity       time.Duration // TOKENVALIDITY
	VapidPublicKey      string        // VAPIDPUBLICKEY
	VapidPrivateKey     string        // VAPIDPRIVATEKEY
}

func (config *Config) New() Config {
	var defaultConfig = Config{
		AuthRateLimit:       20,
		CorsOrigins:         []string{"*"},
		DbType:              "sqlite",
		DbDSN:               "/tmp/placeshare.db",
		Debug:               false,
		EnableNotifications: true,
		GeocodeTimeout:      5 * time.Second,
		Host:                "127.0.0.1",
		MaxBodySize:         16384,   // 16KB
		MaxUploadSize:       5 << 20, // 5MB
		MediaBucket:         "placeshare",
		MediaEndpoint:       "127.0.0.1:9000",
		Port:                5000,
		PushTTL:             3600,
		PushTimeout:         5 * time.Second,
		SSLMode:             "off",
		SSLAutoCertsDir:     "/tmp",
		SSLCustomCertPath:   "/ssl/cert.pem",
		SSLCustomKeyPath:    "/ssl/key.pem",
		TokenValidity:       time.Hour,
	}
	redirDomain, _ := url.Parse(fmt.Sprintf("http://%s:%v", defaultConfig.Host, defaultConfig.Port))
	defaultConfig.RedirectDomain = redirDomain
	// We create a default random key for signing tokens
	b := make([]byte, 32)
	rand.Read(b)
	defaultConfig.SigningKey = base64.URLEncoding.EncodeToString(b)

	return defaultConfig
}

// Verify normalizes the config values and returns an error describing the first invalid setting.
func (config *Config) Verify() error {
	log.Infof("Tokens validity set to %v", config.TokenValidity)

	config.DbType = strings.ToLower(config.DbType)
	if config.DbType != "sqlite" && config.DbType != "postgres" && config.DbType != "mysql" {
		return fmt.Errorf("DBTYPE must be one of sqlite, postgres, mysql")
	}
	if len(config.SigningKey) < 32 {
		return fmt.Errorf("SIGNINGKEY must be at least 32 characters")
	}
	if config.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTIONKEY is required to protect push subscriptions. You can use `openssl rand -hex 16` to generate it")
	} else if len(config.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTIONKEY must be 32 characters")
	}
	if config.GmapAPIKey == "" {
		log.Warn("GMAPAPIKEY is not set, creating places will fail")
	}
	if config.MediaAccessKey == "" || config.MediaSecretKey == "" {
		return fmt.Errorf("MEDIAACCESSKEY and MEDIASECRETKEY must be set")
	}
	if config.MediaPublicURL == nil {
		scheme := "http"
		if config.MediaUseSSL {
			scheme = "https"
		}
		publicURL, err := url.Parse(fmt.Sprintf("%s://%s/%s", scheme, config.MediaEndpoint, config.MediaBucket))
		if err != nil {
			return fmt.Errorf("MEDIAPUBLICURL could not be derived from MEDIAENDPOINT: %w", err)
		}
		config.MediaPublicURL = publicURL
	}
	if config.EnableNotifications {
		if config.AdminEmail == "" {
			return fmt.Errorf("ENABLENOTIFICATIONS is true, so ADMINEMAIL must be set to a valid email address")
		}
		if config.VapidPrivateKey == "" || config.VapidPublicKey == "" {
			log.Warn("ENABLENOTIFICATIONS is true, so VAPIDPRIVATEKEY and VAPIDPUBLICKEY must be defined and valid")
			log.Warn("If you have never defined them, here are some fresh values generated just for you.")
			if privateKey, publicKey, err := webpush.GenerateVAPIDKeys(); err == nil {
				log.Warnf("VAPIDPUBLICKEY=\"%s\"", publicKey)
				log.Warnf("VAPIDPRIVATEKEY=\"%s\"", privateKey)
			}
			return fmt.Errorf("add the VAPID keys to the environment variables. VAPIDPRIVATEKEY is sensitive, keep it secret")
		}
	}
	config.SSLMode = strings.ToLower(config.SSLMode)
	if config.SSLMode != "off" && config.SSLMode != "auto" && config.SSLMode != "custom" && config.SSLMode != "proxy" {
		return fmt.Errorf("SSLMODE must be one of off, auto, custom, proxy")
	}

	return nil
}
