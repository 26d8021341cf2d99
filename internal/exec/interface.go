// Package exec provides an interface for running external helper
// commands, used by the CPU-heavy execution lane to isolate document
// parsing in a separate process.
package exec

import "context"

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// Available reports whether the named command can be found in PATH.
	Available(name string) bool
}
