// Package config loads environment-based configuration into tagged structs.
//
// Each package that needs configuration declares its own Config struct with
// `env` tags and loads it through Load or MustLoad. Values are parsed once
// per type and cached for the lifetime of the process. A .env file in the
// working directory is honored if present.
package config
