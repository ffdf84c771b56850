// Package config loads, normalizes, and validates ccbench configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CCBENCH_API_KEY. The Config type centralizes every knob the CLI needs so
// output directories, dataset snapshots, and engine credentials are resolved
// in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
