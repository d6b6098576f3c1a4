// Package config defines the format-agnostic model of a run file, along with
// the interfaces (Loader, Converter) for loading and interpreting it.
//
// The `config.Model` is the single source of truth for the `app` package.
// Concrete implementations of the interfaces live in separate packages, such
// as `internal/hcl`.
package config
