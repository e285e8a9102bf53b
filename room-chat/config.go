package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gosuda/portal-chat/room-chat/transport"
)

const appName = "room-chat"

type config struct {
	ServerURL         string        `mapstructure:"server_url"`
	DataPath          string        `mapstructure:"data_path"`
	DefaultRoom       string        `mapstructure:"default_room"`
	AssumeDefaultJoin bool          `mapstructure:"assume_default_join"`
	ScrollEpsilon     float64       `mapstructure:"scroll_epsilon"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	Ephemeral         bool          `mapstructure:"ephemeral"`
	Log               logConfig     `mapstructure:"log"`

	// Headers are added to the websocket handshake, e.g. an auth token.
	Headers map[string]string `mapstructure:"headers"`
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"server-url":          "server_url",
	"data-path":           "data_path",
	"default-room":        "default_room",
	"assume-default-join": "assume_default_join",
	"ephemeral":           "ephemeral",
	"log-file":            "log.file",
	"log-level":           "log.level",
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, appName)
}

// loadConfig layers defaults, the YAML file, ROOMCHAT_* variables and set
// flags, in increasing priority. An explicit file must exist; the default
// one may be missing.
func loadConfig(file string, flags *pflag.FlagSet) (*config, error) {
	v := viper.New()
	dir := defaultConfigDir()

	v.SetDefault("server_url", "ws://localhost:5000/ws")
	v.SetDefault("data_path", filepath.Join(dir, "identity"))
	v.SetDefault("default_room", "General")
	v.SetDefault("assume_default_join", false)
	v.SetDefault("scroll_epsilon", 1.0)
	v.SetDefault("reconnect_interval", "3s")
	v.SetDefault("dial_timeout", "10s")
	v.SetDefault("ephemeral", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, appName+".log"))
	v.SetDefault("log.pretty", false)

	v.SetEnvPrefix("ROOMCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(appName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *config) validate() error {
	if !strings.HasPrefix(c.ServerURL, "ws://") && !strings.HasPrefix(c.ServerURL, "wss://") {
		return fmt.Errorf("server_url %q: want a ws:// or wss:// URL", c.ServerURL)
	}
	if c.ReconnectInterval < 0 {
		return fmt.Errorf("reconnect_interval %s: must not be negative", c.ReconnectInterval)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("dial_timeout %s: must not be negative", c.DialTimeout)
	}
	if c.ScrollEpsilon < 0 {
		return fmt.Errorf("scroll_epsilon %v: must not be negative", c.ScrollEpsilon)
	}
	if !c.Ephemeral && c.DataPath == "" {
		return errors.New("data_path is empty; pass --ephemeral to keep the name in memory")
	}
	return nil
}

// transportOptions turns the dial settings into transport options.
func (c *config) transportOptions() []transport.Option {
	header := http.Header{}
	for k, v := range c.Headers {
		header.Set(k, v)
	}
	return []transport.Option{
		transport.WithDialer(&websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: c.DialTimeout,
		}),
		transport.WithHeader(header),
	}
}
