// Package config provides centralized configuration management for the
// documentation crew runtime, combining a JSON configuration file with
// environment variable overrides so that the CLI can run from a plain
// .env file while the daemon uses a full configuration document.
package config
