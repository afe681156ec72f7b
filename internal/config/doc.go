// Package config loads and validates the drawbridge configuration file.
//
// Configuration is YAML with ${ENV_VAR} expansion. It is loaded once at
// startup and the resulting Config is passed into every component at
// construction time; nothing reads configuration globally at runtime.
package config
