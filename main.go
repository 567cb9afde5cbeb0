// =============================================================================
// Enrollment File Processor - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Enrollment File Processor CLI. It
// delegates command execution to the cmd package.
//
// USAGE:
//   enrollment process [file]   - Split an enrollment file per insurance company
//   enrollment validate [file]  - Report rejected rows without writing output
//   enrollment version          - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Pipeline stages, configuration and logging
//   - pkg/           : Shared file management utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/enrollment-file-processor/cmd"
)

func main() {
	cmd.Execute()
}
