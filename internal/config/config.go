// Package config holds the TOML configuration of the server and the
// client binaries.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	envSendbirdAPIToken = "SENDBIRD_API_TOKEN"
	envSigningKey       = "E2EE_SIGNING_KEY"

	defaultListen       = ":9090"
	defaultTokenTTL     = time.Hour
	defaultCardCacheTTL = 5 * time.Minute
	defaultMaxLookup    = 100
	defaultDatabase     = "e2e_groupchat"
	defaultKeystore     = "keystore.db"
	defaultPageSize     = 30
	defaultClientLog    = "client.log"
)

type Logging struct {
	// Level is one of debug, info, warn or error.
	Level       string
	Development bool
	// File receives the log instead of stderr.
	File string
}

type Sendbird struct {
	AppID string
	// APIToken is the master token; SENDBIRD_API_TOKEN overrides it.
	APIToken string
	// BaseURL overrides the endpoint derived from AppID.
	BaseURL string
}

type Token struct {
	AppID string
	KeyID string
	// SigningKey is a base64 Ed25519 seed; E2EE_SIGNING_KEY overrides it.
	SigningKey string
	TTL        time.Duration
}

// Mongo configures the card and group stores. Without a URI both are kept
// in memory.
type Mongo struct {
	URI      string
	Database string
}

// Redis configures the card lookup cache. Without an address there is
// no cache.
type Redis struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	CardTTL  time.Duration
}

type Server struct {
	Logging   Logging
	Listen    string
	MaxLookup int
	Sendbird  Sendbird
	Token     Token
	Mongo     Mongo
	Redis     Redis
}

type Client struct {
	Logging   Logging
	ServerURL string
	// Keystore is the bbolt file holding the local private keys.
	Keystore           string
	DecryptConcurrency int
	BootstrapTimeout   time.Duration
	PageSize           int
}

func (cfg *Server) applyDefaults() {
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	if cfg.MaxLookup <= 0 {
		cfg.MaxLookup = defaultMaxLookup
	}
	if cfg.Token.TTL <= 0 {
		cfg.Token.TTL = defaultTokenTTL
	}
	if cfg.Token.AppID == "" {
		cfg.Token.AppID = cfg.Sendbird.AppID
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = defaultDatabase
	}
	if cfg.Redis.CardTTL <= 0 {
		cfg.Redis.CardTTL = defaultCardCacheTTL
	}
	if v := os.Getenv(envSendbirdAPIToken); v != "" {
		cfg.Sendbird.APIToken = v
	}
	if v := os.Getenv(envSigningKey); v != "" {
		cfg.Token.SigningKey = v
	}
}

// Validate returns nil if the config is valid and otherwise an error is
// returned.
func (cfg *Server) Validate() error {
	if cfg.Sendbird.AppID == "" && cfg.Sendbird.BaseURL == "" {
		return errors.New("config: Sendbird.AppID is not set")
	}
	if cfg.Sendbird.APIToken == "" {
		return fmt.Errorf("config: Sendbird.APIToken is not set (or %s)", envSendbirdAPIToken)
	}
	if cfg.Token.AppID == "" {
		return errors.New("config: Token.AppID is not set")
	}
	seed, err := base64.StdEncoding.DecodeString(cfg.Token.SigningKey)
	if err != nil || len(seed) != 32 {
		return fmt.Errorf("config: Token.SigningKey (or %s) must be a base64 32 byte seed", envSigningKey)
	}
	return nil
}

func (cfg *Client) applyDefaults() {
	if cfg.Keystore == "" {
		cfg.Keystore = defaultKeystore
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = defaultClientLog
	}
}

func (cfg *Client) Validate() error {
	if cfg.ServerURL == "" {
		return errors.New("config: ServerURL is not set")
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: ServerURL %q is not an http(s) URL", cfg.ServerURL)
	}
	if cfg.DecryptConcurrency < 0 {
		return errors.New("config: DecryptConcurrency is negative")
	}
	return nil
}

func decode(b []byte, cfg any) error {
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	return nil
}

// LoadServer parses and validates the provided buffer b as a server config
// file body.
func LoadServer(b []byte) (*Server, error) {
	cfg := new(Server)
	if err := decode(b, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadServerFile(f string) (*Server, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return LoadServer(b)
}

// LoadClient parses and validates the provided buffer b as a client config
// file body.
func LoadClient(b []byte) (*Client, error) {
	cfg := new(Client)
	if err := decode(b, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadClientFile(f string) (*Client, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return LoadClient(b)
}
