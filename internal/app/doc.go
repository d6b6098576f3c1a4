// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the run lifecycle: loading a run file,
// building the equation and initial condition plugins, and driving one
// scheduler per rank over the selected cluster transport. It is decoupled
// from any specific entrypoint like a CLI.
package app
