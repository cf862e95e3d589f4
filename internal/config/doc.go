// Package config handles configuration loading for coven-wizard.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// Unset values fall back to defaults before validation.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_WIZARD_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/wizard.yaml (or ~/.config/coven/wizard.yaml)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	sessions:
//	  secret: "${COVEN_WIZARD_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax and must not be negative:
//
//	engine:
//	  start_delay: "2s"
//	  advance_delay: "1.5s"
//	  reply_delay: "1s"
//	sessions:
//	  idle_timeout: "30m"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	database:
//	  path: "~/.local/share/coven/wizard.db"
//	workflows:
//	  dir: "./workflows"          # seeded into the database on startup
//	engine:
//	  default_override: "auto"    # auto, inline, panel, overlay
//	sessions:
//	  secret: "${COVEN_WIZARD_SECRET}"
//	  cookie_name: "coven_wizard_session"
//	i18n:
//	  default_language: "en"      # en, es, de
//	logging:
//	  level: "info"               # debug, info, warn, error
//	  format: "text"              # text, json
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Validation
//
// Load() rejects a missing server.http_addr or database.path, a session
// secret shorter than 32 bytes, an unknown log format, malformed durations
// and unknown display overrides.
package config
