// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	// BackendAuto picks the native recursive backend where one exists.
	BackendAuto WatchBackend = "auto"
	// BackendFsnotify registers every directory with fsnotify.
	BackendFsnotify WatchBackend = "fsnotify"
	// BackendNotify uses a single recursive notify watch point.
	BackendNotify WatchBackend = "notify"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	// DefaultPort is the port livereload clients conventionally connect to.
	DefaultPort = 35729
)

var (
	// ErrInvalidWatchBackend is returned when a WatchBackend value is not recognized.
	ErrInvalidWatchBackend = errors.New("invalid watch backend")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidServerConfig is the sentinel error wrapped by InvalidServerConfigError.
	ErrInvalidServerConfig = errors.New("invalid server config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// WatchBackend names a watch implementation.
	WatchBackend string

	// InvalidWatchBackendError wraps ErrInvalidWatchBackend.
	InvalidWatchBackendError struct {
		Value WatchBackend
	}

	// LogLevel is the minimum level written to stderr.
	LogLevel string

	// InvalidLogLevelError wraps ErrInvalidLogLevel.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidServerConfigError collects the field errors of a ServerConfig
	// and wraps ErrInvalidServerConfig.
	InvalidServerConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError collects the field errors of a Config and wraps
	// ErrInvalidConfig.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Platform selects merges/<platform>. Empty disables overrides.
		Platform string `json:"platform" mapstructure:"platform" toml:"platform"`

		Watch  WatchConfig  `json:"watch" mapstructure:"watch" toml:"watch"`
		Server ServerConfig `json:"server" mapstructure:"server" toml:"server"`
		Log    LogConfig    `json:"log" mapstructure:"log" toml:"log"`

		// Source is the config file the values were read from, empty when
		// only defaults and environment variables applied.
		Source string `json:"-" mapstructure:"-" toml:"-"`
	}

	// WatchConfig configures the filesystem notifier.
	WatchConfig struct {
		Backend WatchBackend `json:"backend" mapstructure:"backend" toml:"backend"`

		// Ignore lists extra doublestar patterns, relative to each watched
		// root.
		Ignore []string `json:"ignore" mapstructure:"ignore" toml:"ignore"`
	}

	// ServerConfig configures the live-reload server.
	ServerConfig struct {
		Host string `json:"host" mapstructure:"host" toml:"host"`

		// Port 0 asks the system for a free port.
		Port int    `json:"port" mapstructure:"port" toml:"port"`
		Path string `json:"path" mapstructure:"path" toml:"path"`

		// AllowedOrigins restricts WebSocket upgrades by Origin header. Empty
		// accepts any origin.
		AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins" toml:"allowed_origins"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level" toml:"level"`
	}
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Watch: WatchConfig{
			Backend: BackendAuto,
			Ignore:  []string{},
		},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           DefaultPort,
			Path:           "/livereload",
			AllowedOrigins: []string{},
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
	}
}

// String returns the string representation of the WatchBackend.
func (b WatchBackend) String() string { return string(b) }

// IsValid returns whether the WatchBackend is one of the defined backends.
func (b WatchBackend) IsValid() (bool, []error) {
	switch b {
	case BackendAuto, BackendFsnotify, BackendNotify:
		return true, nil
	default:
		return false, []error{&InvalidWatchBackendError{Value: b}}
	}
}

// Error implements the error interface for InvalidWatchBackendError.
func (e *InvalidWatchBackendError) Error() string {
	return fmt.Sprintf("invalid watch backend %q (valid: auto, fsnotify, notify)", e.Value)
}

// Unwrap returns ErrInvalidWatchBackend for errors.Is() compatibility.
func (e *InvalidWatchBackendError) Unwrap() error { return ErrInvalidWatchBackend }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsValid checks the host, port range and endpoint path.
func (c ServerConfig) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, errors.New("server.host: must not be empty"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range 0-65535", c.Port))
	}
	if !strings.HasPrefix(c.Path, "/") {
		errs = append(errs, fmt.Errorf("server.path: %q must start with /", c.Path))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidServerConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidServerConfigError.
func (e *InvalidServerConfigError) Error() string {
	return fmt.Sprintf("invalid server config: %s", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidServerConfig for errors.Is() compatibility.
func (e *InvalidServerConfigError) Unwrap() error { return ErrInvalidServerConfig }

// IsValid validates every section. Values read from files have already been
// checked by the CUE schema; this catches environment overrides.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Watch.Backend.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for _, pat := range c.Watch.Ignore {
		if strings.TrimSpace(pat) == "" {
			errs = append(errs, errors.New("watch.ignore: empty pattern"))
		}
	}
	if valid, fieldErrs := c.Server.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
