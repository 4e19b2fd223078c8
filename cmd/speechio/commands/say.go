package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haivivi/speechio/pkg/cli"
	ds "github.com/haivivi/speechio/pkg/doubaospeech"
	"github.com/haivivi/speechio/pkg/playback"
)

var sayCmd = &cobra.Command{
	Use:   "say [text...]",
	Short: "Play texts through the playback scheduler",
	Long: `Queue each argument as one utterance, synthesize it (or replay it from
the speech cache) and write the audio to -o or stdout.

Texts may also be read one per line from -f (use "-" for stdin).
Ctrl-C interrupts the speaking task and drops the rest of the queue.

Examples:
  speechio say "你好" "今天天气不错" -o out.pcm
  speechio say --priority high --volume 60 "请注意" -o alert.pcm
  cat story.txt | speechio say -f - --no-cache > story.pcm`,
	RunE: func(cmd *cobra.Command, args []string) error {
		texts, err := sayTexts(args)
		if err != nil {
			return err
		}
		if len(texts) == 0 {
			return fmt.Errorf("no text given, pass arguments or use -f")
		}

		cliCtx, err := getContext()
		if err != nil {
			return err
		}
		opts, err := sayOptionsFromFlags(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runSay(ctx, cliCtx, texts, opts)
	},
}

type sayOptions struct {
	task        playback.Task
	noCache     bool
	clearStory  bool
	metricsAddr string
}

func sayOptionsFromFlags(cmd *cobra.Command) (sayOptions, error) {
	f := cmd.Flags()
	var o sayOptions
	priority, _ := f.GetString("priority")
	switch priority {
	case "", "normal":
		o.task.Priority = playback.PriorityNormal
	case "high":
		o.task.Priority = playback.PriorityHigh
	default:
		return o, fmt.Errorf("unknown priority %q, want normal or high", priority)
	}
	o.task.Volume, _ = f.GetInt("volume")
	o.task.SilenceMs, _ = f.GetInt("silence")
	o.task.SpeedRatio, _ = f.GetFloat64("speed")
	o.task.Emotion, _ = f.GetString("emotion")
	o.task.VoiceType, _ = f.GetString("voice")
	o.task.TrailingSilence, _ = f.GetDuration("trailing-silence")
	o.noCache, _ = f.GetBool("no-cache")
	o.clearStory, _ = f.GetBool("clear-story")
	o.metricsAddr, _ = f.GetString("metrics-addr")
	o.task.CacheAllowed = !o.noCache
	return o, nil
}

// sayTexts returns args, or the non-empty lines of the -f file.
func sayTexts(args []string) ([]string, error) {
	if inputFile == "" {
		return args, nil
	}
	var r io.Reader = os.Stdin
	if inputFile != "-" {
		f, err := os.Open(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", inputFile, err)
		}
		defer f.Close()
		r = f
	}
	texts := append([]string(nil), args...)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	return texts, sc.Err()
}

func runSay(ctx context.Context, cliCtx *cli.Context, texts []string, opts sayOptions) error {
	var out io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	synthOpts := []playback.DoubaoOption{}
	if cliCtx.Voice != "" {
		synthOpts = append(synthOpts, playback.WithDoubaoVoice(cliCtx.Voice))
	}
	if cliCtx.Cluster != "" {
		synthOpts = append(synthOpts, playback.WithDoubaoCluster(cliCtx.Cluster))
	}
	if cliCtx.SampleRate > 0 {
		synthOpts = append(synthOpts, playback.WithDoubaoSampleRate(cliCtx.SampleRate))
	}
	synth := playback.NewDoubao(createClient(cliCtx), synthOpts...)

	schedOpts := []playback.Option{
		playback.WithLogger(slog.Default()),
		playback.WithStoryReset(func() { status.Info("story mode reset") }),
	}
	if !opts.noCache {
		paths, err := cli.NewPaths(cli.AppName)
		if err != nil {
			return err
		}
		cache, err := openCache(cliCtx.Cache, paths)
		if err != nil {
			return err
		}
		if cache != nil {
			defer cache.Close()
			schedOpts = append(schedOpts, playback.WithCache(cache))
		}
	}

	sched := playback.NewScheduler(synth, playback.NewWriterSink(out, playback.DefaultSinkQueue), schedOpts...)
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()
	defer sched.Close()

	var handles []*playback.Handle
	if opts.clearStory {
		handles = append(handles, sched.Enqueue(playback.Task{ClearStory: true}))
	}
	for _, text := range texts {
		task := opts.task
		task.Text = text
		if task.Priority == playback.PriorityHigh {
			handles = append(handles, sched.EnqueuePriority(task))
		} else {
			handles = append(handles, sched.Enqueue(task))
		}
	}

	// Ctrl-C stops the speaking task and resolves the queued ones.
	stopOnSignal := context.AfterFunc(ctx, func() { sched.Close() })
	defer stopOnSignal()

	var failed int
	for _, h := range handles {
		res, err := h.Wait(context.Background())
		if err != nil {
			return err
		}
		printSayResult(h.Task(), res)
		if res.Status == playback.StatusFailed {
			failed++
		}
	}
	sched.Close()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, playback.ErrClosed) {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d utterances failed", failed, len(texts))
	}
	return nil
}

func printSayResult(task playback.Task, res playback.Result) {
	label := task.Text
	if task.ClearStory {
		label = "(clear story)"
	}
	switch res.Status {
	case playback.StatusCompleted:
		source := "synthesized"
		if res.CacheHit {
			source = "cached"
		}
		status.Success("%s", label)
		status.Field("source", source)
		status.Field("audio", cli.FormatBytes(res.Bytes))
		status.Field("elapsed", cli.FormatDuration(int(res.Elapsed.Milliseconds())))
	case playback.StatusFailed:
		status.Error("%s: %v", label, res.Err)
	default:
		status.Warning("%s: %s", label, res.Status)
	}
}

func init() {
	sayCmd.Flags().String("priority", "normal", "queue class: normal or high")
	sayCmd.Flags().Int("volume", 100, "playback volume in percent")
	sayCmd.Flags().Int("silence", ds.DefaultSilenceDuration, "silence appended by the synthesizer (ms)")
	sayCmd.Flags().Float64("speed", 0, "speed ratio (default 1.0)")
	sayCmd.Flags().String("emotion", "", "emotion, e.g. happy")
	sayCmd.Flags().String("voice", "", "voice type, overrides the context voice")
	sayCmd.Flags().Duration("trailing-silence", 0, "silence written after cached audio")
	sayCmd.Flags().Bool("no-cache", false, "bypass the speech cache")
	sayCmd.Flags().Bool("clear-story", false, "reset story mode before playing")
	sayCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
}
