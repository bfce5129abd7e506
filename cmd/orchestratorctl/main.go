// Command orchestratorctl is the operator CLI and folder-watcher client for
// the transcription job orchestrator (spec.md §6.1's "CLI wrapper").
package main

import "joborchestrator/internal/cli"

func main() {
	cli.Execute()
}
