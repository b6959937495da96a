// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const envLogLevel = "COTLS_LOG_LEVEL"

// config holds the echo program settings.
type config struct {
	Mode               string
	Listen             string
	Connect            string
	CertFile           string
	KeyFile            string
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
	Clients            int
	Deadline           time.Duration
	AcceptDeadline     time.Duration
	Backlog            int
	LogLevel           string
	Scheduler          string
}

func defaultConfig() config {
	return config{
		Mode:           "demo",
		Listen:         "127.0.0.1:5555",
		Connect:        "127.0.0.1:5555",
		CertFile:       "./cert.pem",
		KeyFile:        "./key.pem",
		ServerName:     "localhost",
		Clients:        10,
		Deadline:       time.Second,
		AcceptDeadline: time.Second,
		Backlog:        32,
		LogLevel:       "info",
		Scheduler:      "netpoll",
	}
}

// config.toml key mapping. Durations are Go duration strings.
type fileConfig struct {
	Listen             string `toml:"listen"`
	Connect            string `toml:"connect"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	Clients            int    `toml:"clients"`
	Deadline           string `toml:"deadline"`
	AcceptDeadline     string `toml:"accept_deadline"`
	Backlog            int    `toml:"backlog"`
	LogLevel           string `toml:"log_level"`
	Scheduler          string `toml:"scheduler"`
}

// loadConfigFile overlays the keys defined in path onto cfg.
func loadConfigFile(path string, cfg config) (config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return config{}, fmt.Errorf("load config: unknown keys %s", strings.Join(keys, ", "))
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("connect") {
		cfg.Connect = strings.TrimSpace(raw.Connect)
	}
	if meta.IsDefined("cert_file") {
		cfg.CertFile = strings.TrimSpace(raw.CertFile)
	}
	if meta.IsDefined("key_file") {
		cfg.KeyFile = strings.TrimSpace(raw.KeyFile)
	}
	if meta.IsDefined("ca_file") {
		cfg.CAFile = strings.TrimSpace(raw.CAFile)
	}
	if meta.IsDefined("server_name") {
		cfg.ServerName = strings.TrimSpace(raw.ServerName)
	}
	if meta.IsDefined("insecure_skip_verify") {
		cfg.InsecureSkipVerify = raw.InsecureSkipVerify
	}
	if meta.IsDefined("clients") {
		cfg.Clients = raw.Clients
	}
	if meta.IsDefined("deadline") {
		if cfg.Deadline, err = time.ParseDuration(strings.TrimSpace(raw.Deadline)); err != nil {
			return config{}, fmt.Errorf("load config: deadline: %w", err)
		}
	}
	if meta.IsDefined("accept_deadline") {
		if cfg.AcceptDeadline, err = time.ParseDuration(strings.TrimSpace(raw.AcceptDeadline)); err != nil {
			return config{}, fmt.Errorf("load config: accept_deadline: %w", err)
		}
	}
	if meta.IsDefined("backlog") {
		cfg.Backlog = raw.Backlog
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("scheduler") {
		cfg.Scheduler = strings.TrimSpace(raw.Scheduler)
	}
	return cfg, nil
}

// resolveConfig applies, in order, the defaults, the config file named by
// -config, the environment, and the remaining flags.
func resolveConfig(args []string, getenv func(string) string, stderr io.Writer) (config, error) {
	cfg := defaultConfig()
	fs := flag.NewFlagSet("cotls-echo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("config", "", "path to a TOML config file")
	var flags config
	fs.StringVar(&flags.Mode, "mode", cfg.Mode, "mode: server | client | demo")
	fs.StringVar(&flags.Listen, "listen", cfg.Listen, "server listen address")
	fs.StringVar(&flags.Connect, "connect", cfg.Connect, "client connect address")
	fs.IntVar(&flags.Clients, "clients", cfg.Clients, "number of clients")
	fs.StringVar(&flags.Scheduler, "scheduler", cfg.Scheduler, "scheduler: netpoll | coop")
	fs.StringVar(&flags.LogLevel, "log-level", cfg.LogLevel, "log level, overrides "+envLogLevel)
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if fs.NArg() > 0 {
		return config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if *path != "" {
		var err error
		if cfg, err = loadConfigFile(*path, cfg); err != nil {
			return config{}, err
		}
	}
	if level := strings.TrimSpace(getenv(envLogLevel)); level != "" {
		cfg.LogLevel = level
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = flags.Mode
		case "listen":
			cfg.Listen = flags.Listen
		case "connect":
			cfg.Connect = flags.Connect
		case "clients":
			cfg.Clients = flags.Clients
		case "scheduler":
			cfg.Scheduler = flags.Scheduler
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		}
	})
	return cfg, cfg.validate()
}

var errInvalidConfig = errors.New("invalid config")

func (c config) validate() error {
	switch c.Mode {
	case "server", "client", "demo":
	default:
		return fmt.Errorf("%w: unsupported mode %q (expected server, client or demo)", errInvalidConfig, c.Mode)
	}
	switch c.Scheduler {
	case "netpoll", "coop":
	default:
		return fmt.Errorf("%w: unsupported scheduler %q (expected netpoll or coop)", errInvalidConfig, c.Scheduler)
	}
	if c.Clients <= 0 {
		return fmt.Errorf("%w: clients must be positive, got %d", errInvalidConfig, c.Clients)
	}
	if c.Backlog <= 0 {
		return fmt.Errorf("%w: backlog must be positive, got %d", errInvalidConfig, c.Backlog)
	}
	if c.Deadline <= 0 || c.AcceptDeadline <= 0 {
		return fmt.Errorf("%w: deadlines must be positive", errInvalidConfig)
	}
	return nil
}
