// Package config provides configuration management for Policykeeper.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in three ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
//  3. From defaults and environment only, when no file exists:
//     cfg, err := config.Load("config.yaml", true)
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention POLICYKEEPER_SECTION_FIELD.
// For example:
//
//   - POLICYKEEPER_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - POLICYKEEPER_STORAGE_SQLITE_PATH overrides storage.sqlite.path
//   - POLICYKEEPER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// Boolean settings whose default is true (server.cors.enabled,
// storage.sqlite.wal_mode, telemetry.metrics.enabled,
// telemetry.health.enabled) can be switched off explicitly because the file
// is decoded on top of NewDefaultConfig.
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and calls
// ReloadConfig after a debounce interval. Only settings that can change at
// runtime (currently the logging level) are applied by the caller.
package config
