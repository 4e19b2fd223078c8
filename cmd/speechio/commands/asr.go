package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	ds "github.com/haivivi/speechio/pkg/doubaospeech"
)

var asrCmd = &cobra.Command{
	Use:   "asr",
	Short: "Recognize a speech file",
	Long: `Recognize speech over /api/v2/asr.

The audio is read from -f. The format is taken from --format or the file
extension (wav, mp3, pcm). For WAV input the sample rate, bit depth and
channel count come from the header.

Example:
  speechio asr -f hello.wav
  speechio asr -f hello.pcm --rate 16000 --json | jq -r '.text'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == "" {
			return fmt.Errorf("input file is required, use -f flag")
		}
		audio, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read audio: %w", err)
		}

		cliCtx, err := getContext()
		if err != nil {
			return err
		}

		f := cmd.Flags()
		format, _ := f.GetString("format")
		if format == "" {
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(inputFile)), ".")
		}
		cfg := &ds.RecognizeConfig{Format: ds.AudioFormat(format)}
		cfg.SampleRate, _ = f.GetInt("rate")
		language, _ := f.GetString("language")
		cfg.Language = ds.Language(language)
		cfg.ShowUtterances, _ = f.GetBool("utterances")
		cfg.NBest, _ = f.GetInt("nbest")
		cfg.Cluster = cliCtx.ASRCluster

		timeout, _ := f.GetDuration("timeout")
		reqCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		result, err := createClient(cliCtx).ASR.Recognize(reqCtx, audio, cfg)
		if err != nil {
			return fmt.Errorf("recognition failed: %w", err)
		}
		return outputResult(result)
	},
}

func init() {
	asrCmd.Flags().String("format", "", "audio format: wav, mp3 or pcm (default: file extension)")
	asrCmd.Flags().Int("rate", 0, "sample rate for raw PCM (default 16000)")
	asrCmd.Flags().String("language", "", "language code (default zh-CN)")
	asrCmd.Flags().Bool("utterances", false, "include utterance timings")
	asrCmd.Flags().Int("nbest", 0, "number of candidates")
	asrCmd.Flags().Duration("timeout", 120*time.Second, "request timeout")
}
