package config

import (
	"errors"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultServerAddress = "127.0.0.1:7878"

	defaultRefreshIntervalSeconds = 30
	defaultDebounceShortMS        = 80
	defaultDebounceLongMS         = 120
	defaultWatchdogTickSeconds    = 15
	defaultStalenessSeconds       = 600
	defaultHydrationTTLSeconds    = 30
	defaultRunMarkerTTLSeconds    = 90
)

// ErrInvalidConfiguration is fatal: the engine cannot start without a usable
// server target.
var ErrInvalidConfiguration = errors.New("invalid configuration")

const (
	CursorBackendBbolt = "bbolt"
	CursorBackendRedis = "redis"
)

type Settings struct {
	Server  ServerSettings  `toml:"server"`
	Sync    SyncSettings    `toml:"sync"`
	Store   StoreSettings   `toml:"store"`
	Logging LoggingSettings `toml:"logging"`
}

type ServerSettings struct {
	Address string `toml:"address"`
}

type SyncSettings struct {
	RefreshIntervalSeconds int   `toml:"refresh_interval_seconds"`
	DebounceShortMS        int   `toml:"debounce_short_ms"`
	DebounceLongMS         int   `toml:"debounce_long_ms"`
	WatchdogTickSeconds    int   `toml:"watchdog_tick_seconds"`
	StalenessSeconds       int   `toml:"staleness_seconds"`
	HydrationTTLSeconds    int   `toml:"hydration_ttl_seconds"`
	RunMarkerTTLSeconds    int   `toml:"run_marker_ttl_seconds"`
	SteerEnabled           *bool `toml:"steer_enabled"`
}

type StoreSettings struct {
	Backend  string `toml:"backend"`
	DBPath   string `toml:"db_path"`
	RedisURL string `toml:"redis_url"`
}

type LoggingSettings struct {
	Level string `toml:"level"`
}

func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Address: defaultServerAddress},
		Sync: SyncSettings{
			RefreshIntervalSeconds: defaultRefreshIntervalSeconds,
			DebounceShortMS:        defaultDebounceShortMS,
			DebounceLongMS:         defaultDebounceLongMS,
			WatchdogTickSeconds:    defaultWatchdogTickSeconds,
			StalenessSeconds:       defaultStalenessSeconds,
			HydrationTTLSeconds:    defaultHydrationTTLSeconds,
			RunMarkerTTLSeconds:    defaultRunMarkerTTLSeconds,
		},
		Store:   StoreSettings{Backend: CursorBackendBbolt},
		Logging: LoggingSettings{Level: "info"},
	}
}

// Load reads the settings file, falling back to defaults when it is absent.
func Load() (Settings, error) {
	path, err := SettingsPath()
	if err != nil {
		return Settings{}, err
	}
	return loadFromPath(path)
}

func loadFromPath(path string) (Settings, error) {
	settings := DefaultSettings()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return Settings{}, err
	}
	if err := toml.Unmarshal(raw, &settings); err != nil {
		return Settings{}, err
	}
	return settings.normalized(), nil
}

func (s Settings) normalized() Settings {
	defaults := DefaultSettings()
	if s.Sync.RefreshIntervalSeconds <= 0 {
		s.Sync.RefreshIntervalSeconds = defaults.Sync.RefreshIntervalSeconds
	}
	if s.Sync.DebounceShortMS <= 0 {
		s.Sync.DebounceShortMS = defaults.Sync.DebounceShortMS
	}
	if s.Sync.DebounceLongMS <= 0 {
		s.Sync.DebounceLongMS = defaults.Sync.DebounceLongMS
	}
	if s.Sync.WatchdogTickSeconds <= 0 {
		s.Sync.WatchdogTickSeconds = defaults.Sync.WatchdogTickSeconds
	}
	if s.Sync.StalenessSeconds <= 0 {
		s.Sync.StalenessSeconds = defaults.Sync.StalenessSeconds
	}
	if s.Sync.HydrationTTLSeconds <= 0 {
		s.Sync.HydrationTTLSeconds = defaults.Sync.HydrationTTLSeconds
	}
	if s.Sync.RunMarkerTTLSeconds <= 0 {
		s.Sync.RunMarkerTTLSeconds = defaults.Sync.RunMarkerTTLSeconds
	}
	if strings.TrimSpace(s.Store.Backend) == "" {
		s.Store.Backend = defaults.Store.Backend
	}
	if strings.TrimSpace(s.Logging.Level) == "" {
		s.Logging.Level = defaults.Logging.Level
	}
	return s
}

// Validate reports configuration the engine cannot run with.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.ServerAddress()) == "" {
		return ErrInvalidConfiguration
	}
	switch strings.ToLower(strings.TrimSpace(s.Store.Backend)) {
	case CursorBackendBbolt:
	case CursorBackendRedis:
		if strings.TrimSpace(s.Store.RedisURL) == "" {
			return ErrInvalidConfiguration
		}
		if _, err := url.Parse(s.Store.RedisURL); err != nil {
			return ErrInvalidConfiguration
		}
	default:
		return ErrInvalidConfiguration
	}
	return nil
}

func (s Settings) ServerAddress() string {
	addr := strings.TrimSpace(s.Server.Address)
	if addr == "" {
		return defaultServerAddress
	}
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimRight(addr, "/")
	if addr == "" {
		return defaultServerAddress
	}
	return addr
}

func (s Settings) BaseURL() string {
	return "http://" + s.ServerAddress()
}

func (s Settings) StreamURL() string {
	return "ws://" + s.ServerAddress() + "/v1/stream"
}

func (s Settings) LogLevel() string {
	level := strings.TrimSpace(s.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}
