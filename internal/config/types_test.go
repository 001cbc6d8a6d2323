// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
)

func TestWatchBackendIsValid(t *testing.T) {
	t.Parallel()

	for _, b := range []WatchBackend{BackendAuto, BackendFsnotify, BackendNotify} {
		if ok, errs := b.IsValid(); !ok {
			t.Errorf("%q should be valid, got %v", b, errs)
		}
	}

	ok, errs := WatchBackend("kqueue").IsValid()
	if ok || len(errs) != 1 || !errors.Is(errs[0], ErrInvalidWatchBackend) {
		t.Errorf("kqueue: got %v, %v", ok, errs)
	}
}

func TestLogLevelIsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError} {
		if ok, _ := l.IsValid(); !ok {
			t.Errorf("%q should be valid", l)
		}
	}
	if ok, errs := LogLevel("").IsValid(); ok || !errors.Is(errs[0], ErrInvalidLogLevel) {
		t.Errorf("empty level should be invalid, got %v", errs)
	}
}

func TestServerConfigIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  ServerConfig
		want bool
	}{
		{name: "defaults", cfg: DefaultConfig().Server, want: true},
		{name: "any port", cfg: ServerConfig{Host: "0.0.0.0", Port: 0, Path: "/"}, want: true},
		{name: "empty host", cfg: ServerConfig{Host: " ", Port: 80, Path: "/lr"}},
		{name: "negative port", cfg: ServerConfig{Host: "localhost", Port: -1, Path: "/lr"}},
		{name: "port too large", cfg: ServerConfig{Host: "localhost", Port: 65536, Path: "/lr"}},
		{name: "relative path", cfg: ServerConfig{Host: "localhost", Port: 80, Path: "lr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ok, errs := tt.cfg.IsValid()
			if ok != tt.want {
				t.Fatalf("IsValid() = %v (%v), want %v", ok, errs, tt.want)
			}
			if !ok && !errors.Is(errs[0], ErrInvalidServerConfig) {
				t.Errorf("expected ErrInvalidServerConfig, got %v", errs[0])
			}
		})
	}
}

func TestConfigIsValidCollectsErrors(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Watch.Backend = "poll"
	cfg.Watch.Ignore = []string{""}
	cfg.Server.Port = 99999
	cfg.Log.Level = "trace"

	ok, errs := cfg.IsValid()
	if ok {
		t.Fatal("expected invalid config")
	}
	var cfgErr *InvalidConfigError
	if !errors.As(errs[0], &cfgErr) {
		t.Fatalf("expected *InvalidConfigError, got %T", errs[0])
	}
	if len(cfgErr.FieldErrors) != 4 {
		t.Errorf("expected 4 field errors, got %d: %v", len(cfgErr.FieldErrors), cfgErr.FieldErrors)
	}
	if !errors.Is(errs[0], ErrInvalidConfig) {
		t.Error("expected errors.Is(ErrInvalidConfig)")
	}
}

func TestServerConfigAddr(t *testing.T) {
	t.Parallel()

	if got := (ServerConfig{Host: "::1", Port: 35729}).Addr(); got != "[::1]:35729" {
		t.Errorf("Addr() = %q", got)
	}
}
