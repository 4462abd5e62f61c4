// Package config loads the resilience layer's settings from an optional
// config file overlaid with KEEL_-prefixed environment variables, validates
// them, and translates each section into the corresponding component config.
package config
