// Package config loads the TOML configuration file for a messengerd
// instance: local identity defaults, the tick-loop interval, the save
// file location, and the optional metrics/status-API listen addresses.
package config
