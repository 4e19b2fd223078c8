package commands

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/speechio/pkg/cli"
	ds "github.com/haivivi/speechio/pkg/doubaospeech"
)

const ttsTimeout = 300 * time.Second

var ttsCmd = &cobra.Command{
	Use:   "tts",
	Short: "Text-to-Speech synthesis",
	Long: `Text-to-Speech synthesis over /api/v1/tts/ws_binary.

The request is read from -f (YAML or JSON, "-" for stdin) or built from the
arguments. The context voice and cluster fill empty fields.

Example request file (tts.yaml):
  text: 你好，这是一段测试语音。
  voice_type: BV700_streaming
  encoding: pcm
  sample_rate: 24000
  speed_ratio: 1.0`,
}

var ttsOnceCmd = &cobra.Command{
	Use:   "once [text]",
	Short: "Synthesize with operation=query and save the audio",
	Long: `Synthesize speech in one round trip and save it to -o.

Example:
  speechio tts once -f tts.yaml -o output.pcm
  speechio tts once "你好" -o hello.pcm`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTTS(args, runTTSOnce)
	},
}

var ttsStreamCmd = &cobra.Command{
	Use:   "stream [text]",
	Short: "Synthesize with operation=submit, streaming chunks",
	Long: `Stream speech synthesis and write chunks to -o as they arrive.

Example:
  speechio tts stream -f tts.yaml -o output.pcm`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTTS(args, runTTSStream)
	},
}

func runTTS(args []string, run func(context.Context, *ds.Client, *ds.TTSRequest) error) error {
	if outputFile == "" {
		return fmt.Errorf("output file is required, use -o flag")
	}
	cliCtx, err := getContext()
	if err != nil {
		return err
	}
	req, err := ttsRequest(args, cliCtx)
	if err != nil {
		return err
	}
	reqCtx, cancel := context.WithTimeout(context.Background(), ttsTimeout)
	defer cancel()
	return run(reqCtx, createClient(cliCtx), req)
}

// ttsRequest loads -f or builds a request from args, then fills defaults
// from the context.
func ttsRequest(args []string, cliCtx *cli.Context) (*ds.TTSRequest, error) {
	var req ds.TTSRequest
	if inputFile != "" {
		if err := cli.LoadRequest(inputFile, &req); err != nil {
			return nil, err
		}
	}
	if len(args) > 0 {
		req.Text = strings.Join(args, " ")
	}
	if req.Text == "" {
		return nil, fmt.Errorf("text is required, pass it as an argument or use -f")
	}
	if req.VoiceType == "" {
		req.VoiceType = cliCtx.Voice
	}
	if req.Cluster == "" {
		req.Cluster = cliCtx.Cluster
	}
	if req.SampleRate == 0 {
		req.SampleRate = cliCtx.SampleRate
	}
	return &req, nil
}

func runTTSOnce(ctx context.Context, client *ds.Client, req *ds.TTSRequest) error {
	resp, err := client.TTS.SynthesizeOnce(ctx, req)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}
	if err := cli.OutputBytes(resp.Audio, outputFile); err != nil {
		return err
	}
	status.Success("Audio saved to: %s (%s)", outputFile, cli.FormatBytes(int64(len(resp.Audio))))

	return cli.Output(map[string]any{
		"reqid":       resp.ReqID,
		"audio_size":  len(resp.Audio),
		"duration_ms": resp.Duration,
		"output_file": outputFile,
	}, cli.OutputOptions{Format: outputFormat()})
}

func runTTSStream(ctx context.Context, client *ds.Client, req *ds.TTSRequest) error {
	stream, err := client.TTS.SynthesizeStream(ctx, req)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}
	defer stream.Close()

	var (
		audio  bytes.Buffer
		chunks int
		first  time.Duration
	)
	start := time.Now()
	for chunk, err := range stream.Recv() {
		if err != nil {
			return fmt.Errorf("streaming failed: %w", err)
		}
		if len(chunk.Audio) == 0 {
			continue
		}
		if chunks == 0 {
			first = time.Since(start)
		}
		chunks++
		audio.Write(chunk.Audio)
	}
	if stream.Status() != ds.StreamCompleted {
		return fmt.Errorf("stream ended %s", stream.Status())
	}

	if err := cli.OutputBytes(audio.Bytes(), outputFile); err != nil {
		return err
	}
	status.Success("Audio saved to: %s (%s, %d chunks)", outputFile, cli.FormatBytes(int64(audio.Len())), chunks)

	return cli.Output(map[string]any{
		"reqid":          stream.ReqID(),
		"audio_size":     audio.Len(),
		"chunks":         chunks,
		"first_chunk_ms": first.Milliseconds(),
		"duration_ms":    stream.Duration(),
		"output_file":    outputFile,
	}, cli.OutputOptions{Format: outputFormat()})
}

func init() {
	ttsCmd.AddCommand(ttsOnceCmd)
	ttsCmd.AddCommand(ttsStreamCmd)
}
