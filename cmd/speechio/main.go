// Package main provides the speechio CLI tool.
//
// Usage:
//
//	speechio [flags] <command> [args]
//
// Commands:
//
//	say     - Queue texts on the playback scheduler and write the audio out
//	tts     - One-shot and streaming synthesis
//	asr     - Recognize a WAV, MP3 or PCM file
//	config  - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.giztoy/speechio/
//	Use 'speechio config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/speechio/cmd/speechio/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
