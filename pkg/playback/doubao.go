package playback

import (
	"context"
	"iter"

	"github.com/haivivi/speechio/pkg/doubaospeech"
)

// Synthesizer starts streaming synthesis for a task.
type Synthesizer interface {
	Synthesize(ctx context.Context, task Task) (Stream, error)
}

// Stream is one in-flight synthesis.
type Stream interface {
	// Params describes the audio yielded by Recv.
	Params() StreamParams

	// Recv yields audio chunks in order. It can be consumed once.
	Recv() iter.Seq2[[]byte, error]

	// Cancel stops Recv at the next chunk boundary.
	Cancel()

	// Completed reports whether Recv saw the final chunk.
	Completed() bool

	Close() error
}

// Doubao synthesizes tasks with the Volcengine TTS v1 streaming API.
type Doubao struct {
	tts        *doubaospeech.TTSService
	voiceType  string
	cluster    string
	encoding   doubaospeech.AudioEncoding
	sampleRate int
	language   doubaospeech.Language
}

var _ Synthesizer = (*Doubao)(nil)

// DoubaoOption configures a Doubao synthesizer.
type DoubaoOption func(*Doubao)

// WithDoubaoVoice sets the voice used when a task has no VoiceType.
func WithDoubaoVoice(voiceType string) DoubaoOption {
	return func(d *Doubao) {
		d.voiceType = voiceType
	}
}

// WithDoubaoCluster overrides the client cluster.
func WithDoubaoCluster(cluster string) DoubaoOption {
	return func(d *Doubao) {
		d.cluster = cluster
	}
}

// WithDoubaoEncoding sets the audio encoding. Volume scaling and trailing
// silence only apply to pcm.
func WithDoubaoEncoding(encoding doubaospeech.AudioEncoding) DoubaoOption {
	return func(d *Doubao) {
		d.encoding = encoding
	}
}

// WithDoubaoSampleRate sets the output sample rate.
func WithDoubaoSampleRate(rate int) DoubaoOption {
	return func(d *Doubao) {
		d.sampleRate = rate
	}
}

// WithDoubaoLanguage sets the synthesis language.
func WithDoubaoLanguage(language doubaospeech.Language) DoubaoOption {
	return func(d *Doubao) {
		d.language = language
	}
}

// NewDoubao creates a synthesizer on client.
func NewDoubao(client *doubaospeech.Client, opts ...DoubaoOption) *Doubao {
	d := &Doubao{
		tts:        client.TTS,
		voiceType:  doubaospeech.DefaultVoiceType,
		encoding:   doubaospeech.EncodingPCM,
		sampleRate: doubaospeech.DefaultTTSSampleRate,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Request builds the TTS request for task.
func (d *Doubao) Request(task Task) *doubaospeech.TTSRequest {
	voice := task.VoiceType
	if voice == "" {
		voice = d.voiceType
	}
	return &doubaospeech.TTSRequest{
		Text:            task.Text,
		VoiceType:       voice,
		Cluster:         d.cluster,
		Encoding:        d.encoding,
		SampleRate:      d.sampleRate,
		SpeedRatio:      task.SpeedRatio,
		Emotion:         task.Emotion,
		Language:        d.language,
		SilenceDuration: task.SilenceMs,
	}
}

func (d *Doubao) Synthesize(ctx context.Context, task Task) (Stream, error) {
	st, err := d.tts.SynthesizeStream(ctx, d.Request(task))
	if err != nil {
		return nil, err
	}
	return &doubaoStream{
		st: st,
		params: StreamParams{
			Encoding:   string(d.encoding),
			SampleRate: d.sampleRate,
		},
	}, nil
}

type doubaoStream struct {
	st     *doubaospeech.TTSStream
	params StreamParams
}

func (s *doubaoStream) Params() StreamParams {
	return s.params
}

func (s *doubaoStream) Recv() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for chunk, err := range s.st.Recv() {
			if err != nil {
				yield(nil, err)
				return
			}
			if len(chunk.Audio) == 0 {
				continue
			}
			if !yield(chunk.Audio, nil) {
				return
			}
		}
	}
}

func (s *doubaoStream) Cancel() {
	s.st.Cancel()
}

func (s *doubaoStream) Completed() bool {
	return s.st.Status() == doubaospeech.StreamCompleted
}

func (s *doubaoStream) Close() error {
	return s.st.Close()
}
