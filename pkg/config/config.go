// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads potterm settings from a TOML file. Values absent
// from the file keep their defaults; command-line flags override both.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Thermoquad/potterm/pkg/terminal"
)

// ErrInvalid is wrapped by every Validate failure
var ErrInvalid = errors.New("invalid config")

// MQTT configures the optional record publisher
type MQTT struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Retain   bool
}

// Config is the resolved potterm configuration
type Config struct {
	Port              string
	Baud              int
	URL               string
	Username          string
	Newline           terminal.NewlineMode
	Mode              terminal.Mode
	RecordBufferLimit int
	ScrollbackBytes   int
	MQTT              MQTT

	// Buttons maps a TUI key to the text it sends
	Buttons map[string]string
}

type fileConfig struct {
	Port              string            `toml:"port"`
	Baud              int               `toml:"baud"`
	URL               string            `toml:"url"`
	Username          string            `toml:"username"`
	Newline           string            `toml:"newline"`
	Mode              string            `toml:"mode"`
	RecordBufferLimit int               `toml:"record_buffer_limit"`
	ScrollbackBytes   int               `toml:"scrollback_bytes"`
	MQTT              fileMQTT          `toml:"mqtt"`
	Buttons           map[string]string `toml:"buttons"`
}

type fileMQTT struct {
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
	QoS      int    `toml:"qos"`
	Retain   bool   `toml:"retain"`
}

// DefaultButtons returns the pot-select and adjust keys of the control
// panel: 1-4 select a pot, - and + decrease and increase it
func DefaultButtons() map[string]string {
	return map[string]string{
		"1": "a",
		"2": "b",
		"3": "c",
		"4": "d",
		"-": "e",
		"+": "f",
	}
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Baud:              115200,
		Newline:           terminal.NewlineCRLF,
		Mode:              terminal.ModeText,
		RecordBufferLimit: terminal.DefaultRecordBufferLimit,
		ScrollbackBytes:   terminal.DefaultScrollbackBytes,
		MQTT: MQTT{
			Topic: "potterm/records",
		},
		Buttons: DefaultButtons(),
	}
}

// Dir returns the potterm configuration directory.
// Respects XDG_CONFIG_HOME on Unix, APPDATA on Windows.
func Dir() string {
	var base string

	if runtime.GOOS == "windows" {
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	} else {
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, _ := os.UserHomeDir()
			base = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(base, "potterm")
}

// DefaultPath returns the path to config.toml
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads path over the defaults. A missing file at the default path is
// not an error; a missing explicit path is.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.overlay(raw, meta); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML text over the defaults
func Decode(data string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.overlay(raw, meta); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlay(raw fileConfig, meta toml.MetaData) error {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}

	if meta.IsDefined("port") {
		c.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		c.Baud = raw.Baud
	}
	if meta.IsDefined("url") {
		c.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("username") {
		c.Username = strings.TrimSpace(raw.Username)
	}

	if meta.IsDefined("newline") {
		n, err := terminal.ParseNewlineMode(raw.Newline)
		if err != nil {
			return fmt.Errorf("parse newline: %w", err)
		}
		c.Newline = n
	}

	if meta.IsDefined("mode") {
		m, err := terminal.ParseMode(raw.Mode)
		if err != nil {
			return fmt.Errorf("parse mode: %w", err)
		}
		c.Mode = m
	}

	if meta.IsDefined("record_buffer_limit") {
		c.RecordBufferLimit = raw.RecordBufferLimit
	}
	if meta.IsDefined("scrollback_bytes") {
		c.ScrollbackBytes = raw.ScrollbackBytes
	}

	if meta.IsDefined("mqtt", "broker") {
		c.MQTT.Broker = strings.TrimSpace(raw.MQTT.Broker)
	}
	if meta.IsDefined("mqtt", "topic") {
		c.MQTT.Topic = strings.TrimSpace(raw.MQTT.Topic)
	}
	if meta.IsDefined("mqtt", "client_id") {
		c.MQTT.ClientID = strings.TrimSpace(raw.MQTT.ClientID)
	}
	if meta.IsDefined("mqtt", "qos") {
		if raw.MQTT.QoS < 0 || raw.MQTT.QoS > 2 {
			return fmt.Errorf("%w: mqtt.qos %d out of range 0-2", ErrInvalid, raw.MQTT.QoS)
		}
		c.MQTT.QoS = byte(raw.MQTT.QoS)
	}
	if meta.IsDefined("mqtt", "retain") {
		c.MQTT.Retain = raw.MQTT.Retain
	}

	// Button entries replace individual defaults; an empty value unbinds
	// the key
	for key, text := range raw.Buttons {
		if text == "" {
			delete(c.Buttons, key)
			continue
		}
		c.Buttons[key] = text
	}

	return nil
}

// Validate checks that the configuration can open a session
func (c Config) Validate() error {
	if c.Port != "" && c.URL != "" {
		return fmt.Errorf("%w: port and url are mutually exclusive", ErrInvalid)
	}
	if c.Baud <= 0 {
		return fmt.Errorf("%w: baud must be positive, got %d", ErrInvalid, c.Baud)
	}
	if c.RecordBufferLimit < 0 {
		return fmt.Errorf("%w: record_buffer_limit must not be negative", ErrInvalid)
	}
	if c.ScrollbackBytes < 0 {
		return fmt.Errorf("%w: scrollback_bytes must not be negative", ErrInvalid)
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("%w: mqtt.topic is required with mqtt.broker", ErrInvalid)
	}
	for _, key := range c.ButtonKeys() {
		if len([]rune(key)) != 1 {
			return fmt.Errorf("%w: button key %q must be a single character", ErrInvalid, key)
		}
	}
	return nil
}

// ButtonKeys returns the bound keys in sorted order
func (c Config) ButtonKeys() []string {
	keys := make([]string, 0, len(c.Buttons))
	for k := range c.Buttons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TerminalConfig returns the receiver settings for a new session
func (c Config) TerminalConfig() terminal.Config {
	cfg := terminal.DefaultConfig()
	cfg.Newline = c.Newline
	cfg.Mode = c.Mode
	cfg.RecordBufferLimit = c.RecordBufferLimit
	cfg.ScrollbackBytes = c.ScrollbackBytes
	return cfg
}
