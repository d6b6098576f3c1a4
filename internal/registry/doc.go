// Package registry provides the central "glue" for the plugin system.
//
// The Registry maps the names used in run files (e.g. `equation "heat"`) to
// the compiled Go factories that build kernels and initial conditions. Every
// plugin declares its arguments as a Go struct with `arg` tags; during
// startup the registry is validated, which derives the argument definitions
// from those structs so that run files and Go code cannot drift apart.
package registry
