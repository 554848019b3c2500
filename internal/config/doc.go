// Package config loads application configuration from a global config file,
// an optional per-workspace config file, and environment variables, in that
// priority order (later sources win). See types.Config for the fields
// consumed and spec.md §6 for the environment variable names.
package config
