package relay

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/castrelay/pkg/cast"
	"github.com/zachfi/castrelay/pkg/encoder"
	"github.com/zachfi/castrelay/pkg/icecast"
)

const (
	defaultDiscoveryTimeout = 10 * time.Second
	defaultRequestTimeout   = 5 * time.Second
	defaultQueueSize        = 64
	defaultSonosTitle       = "Chromecast"
	defaultCheckInterval    = 30 * time.Second
	defaultReconnectMin     = time.Second
	defaultReconnectMax     = time.Minute
)

var ErrInvalidConfig = errors.New("invalid relay config")

// Config groups everything the relay needs. The sections are flattened into
// the top level of the application config.
type Config struct {
	Cast    CastConfig    `yaml:"cast,omitempty"`
	Icecast IcecastConfig `yaml:"icecast,omitempty"`
	Sonos   SonosConfig   `yaml:"sonos,omitempty"`
	Encoder EncoderConfig `yaml:"encoder,omitempty"`
	Relay   Options       `yaml:"relay,omitempty"`
}

type CastConfig struct {
	DeviceName       string        `yaml:"device-name,omitempty"`
	DeviceHost       string        `yaml:"device-host,omitempty"`
	DevicePort       int           `yaml:"device-port,omitempty"`
	DiscoveryTimeout time.Duration `yaml:"discovery-timeout,omitempty"`
	Interface        string        `yaml:"interface,omitempty"` // restrict mDNS to one interface

	CheckInterval       time.Duration `yaml:"check-interval,omitempty"`
	ReconnectBackoff    time.Duration `yaml:"reconnect-backoff,omitempty"`
	ReconnectBackoffMax time.Duration `yaml:"reconnect-backoff-max,omitempty"`
}

type IcecastConfig struct {
	Address       string `yaml:"address,omitempty"`
	AdminUser     string `yaml:"admin-user,omitempty"`
	AdminPassword string `yaml:"admin-password,omitempty"`
	Mount         string `yaml:"mount,omitempty"`
}

type SonosConfig struct {
	Host              string `yaml:"host,omitempty"`
	StreamURL         string `yaml:"stream-url,omitempty"`
	Title             string `yaml:"title,omitempty"`
	RedirectOnSession bool   `yaml:"redirect-on-session,omitempty"`
}

type EncoderConfig struct {
	Enabled    bool   `yaml:"enabled,omitempty"`
	Name       string `yaml:"name,omitempty"`
	ConfigPath string `yaml:"config,omitempty"`
}

type Options struct {
	RequestTimeout time.Duration `yaml:"request-timeout,omitempty"`
	QueueSize      int           `yaml:"queue-size,omitempty"`
	SkipDuplicates bool          `yaml:"skip-duplicates,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	cfg.Cast.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "cast"), f)
	cfg.Icecast.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "icecast"), f)
	cfg.Sonos.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "sonos"), f)
	cfg.Encoder.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "encoder"), f)
	cfg.Relay.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "relay"), f)
}

func (cfg *CastConfig) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.DeviceName, util.PrefixConfig(prefix, "device-name"), "", "Friendly name of the Chromecast source device.")
	f.StringVar(&cfg.DeviceHost, util.PrefixConfig(prefix, "device-host"), "", "Address of the Chromecast source device. Skips discovery when set.")
	f.IntVar(&cfg.DevicePort, util.PrefixConfig(prefix, "device-port"), cast.DefaultPort, "Cast channel port of the source device.")
	f.DurationVar(&cfg.DiscoveryTimeout, util.PrefixConfig(prefix, "discovery-timeout"), defaultDiscoveryTimeout, "How long to browse for cast devices.")
	f.StringVar(&cfg.Interface, util.PrefixConfig(prefix, "interface"), "", "Network interface used for discovery, empty for all.")
	f.DurationVar(&cfg.CheckInterval, util.PrefixConfig(prefix, "check-interval"), defaultCheckInterval, "How often to confirm the device still answers. 0 disables reconnecting.")
	f.DurationVar(&cfg.ReconnectBackoff, util.PrefixConfig(prefix, "reconnect-backoff"), defaultReconnectMin,
		"Initial delay before binding again after the device connection is lost.")
	f.DurationVar(&cfg.ReconnectBackoffMax, util.PrefixConfig(prefix, "reconnect-backoff-max"), defaultReconnectMax,
		"Maximum delay between bind attempts.")
}

func (cfg *IcecastConfig) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Address, util.PrefixConfig(prefix, "address"), "", "Icecast 2 server host:port. Metadata updates are disabled when empty.")
	f.StringVar(&cfg.AdminUser, util.PrefixConfig(prefix, "admin-user"), "", "Icecast admin user.")
	f.StringVar(&cfg.AdminPassword, util.PrefixConfig(prefix, "admin-password"), "", "Icecast admin password.")
	f.StringVar(&cfg.Mount, util.PrefixConfig(prefix, "mount"), icecast.DefaultMount, "Icecast mount the encoder publishes to.")
}

func (cfg *SonosConfig) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Host, util.PrefixConfig(prefix, "host"), "", "Sonos speaker address. Sonos output is disabled when empty.")
	f.StringVar(&cfg.StreamURL, util.PrefixConfig(prefix, "stream-url"), "", "Stream the speaker plays. Defaults to the Icecast mount URL.")
	f.StringVar(&cfg.Title, util.PrefixConfig(prefix, "title"), defaultSonosTitle, "Station title shown on the speaker.")
	f.BoolVar(&cfg.RedirectOnSession, util.PrefixConfig(prefix, "redirect-on-session"), true, "Switch the speaker to the stream when a cast session starts.")
}

func (cfg *EncoderConfig) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.BoolVar(&cfg.Enabled, util.PrefixConfig(prefix, "enabled"), true, "Launch the encoder when a cast session starts and it is not running.")
	f.StringVar(&cfg.Name, util.PrefixConfig(prefix, "name"), encoder.DefaultName, "Executable name of the encoder.")
	f.StringVar(&cfg.ConfigPath, util.PrefixConfig(prefix, "config"), encoder.DefaultConfig, "Configuration file passed to the encoder with -c.")
}

func (cfg *Options) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.RequestTimeout, util.PrefixConfig(prefix, "request-timeout"), defaultRequestTimeout, "Timeout for each Icecast, Sonos and encoder call.")
	f.IntVar(&cfg.QueueSize, util.PrefixConfig(prefix, "queue-size"), defaultQueueSize, "Notifications buffered between the cast connection and the relay.")
	f.BoolVar(&cfg.SkipDuplicates, util.PrefixConfig(prefix, "skip-duplicates"), false, "Do not push metadata identical to the last push.")
}

// StreamURL is the URL the Sonos speaker is pointed at.
func (cfg *Config) StreamURL() string {
	if cfg.Sonos.StreamURL != "" {
		return cfg.Sonos.StreamURL
	}
	if cfg.Icecast.Address == "" {
		return ""
	}
	mount := cfg.Icecast.Mount
	if mount == "" {
		mount = icecast.DefaultMount
	}
	return "http://" + cfg.Icecast.Address + mount
}

// Validate fails fast on configuration that would otherwise break inside a
// notification callback.
func (cfg *Config) Validate() error {
	if cfg.Cast.DeviceName == "" && cfg.Cast.DeviceHost == "" {
		return fmt.Errorf("%w: one of cast.device-name or cast.device-host is required", ErrInvalidConfig)
	}

	if cfg.Icecast.Address != "" && (cfg.Icecast.AdminUser == "" || cfg.Icecast.AdminPassword == "") {
		return fmt.Errorf("%w: icecast.admin-user and icecast.admin-password are required with icecast.address", ErrInvalidConfig)
	}

	if cfg.Sonos.Host != "" && cfg.StreamURL() == "" {
		return fmt.Errorf("%w: sonos.host needs sonos.stream-url or icecast.address", ErrInvalidConfig)
	}

	if cfg.Relay.RequestTimeout <= 0 {
		return fmt.Errorf("%w: relay.request-timeout must be positive", ErrInvalidConfig)
	}

	if cfg.Cast.CheckInterval < 0 {
		return fmt.Errorf("%w: cast.check-interval must not be negative", ErrInvalidConfig)
	}

	if cfg.Relay.QueueSize <= 0 {
		return fmt.Errorf("%w: relay.queue-size must be positive", ErrInvalidConfig)
	}

	return nil
}
