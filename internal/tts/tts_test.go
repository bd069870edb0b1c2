package tts_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/voiceover/internal/align"
	"github.com/nikhilbhutani/voiceover/internal/audio"
	"github.com/nikhilbhutani/voiceover/internal/config"
	"github.com/nikhilbhutani/voiceover/internal/tempfiles"
	"github.com/nikhilbhutani/voiceover/internal/tts"
)

type fakeVocoder struct {
	reqs      []tts.InferenceRequest
	rate      []int
	alignment *tts.Alignment
	failAt    int
}

func (f *fakeVocoder) Name() string { return "fake" }

func (f *fakeVocoder) Infer(_ context.Context, req tts.InferenceRequest) (*tts.InferenceResult, error) {
	i := len(f.reqs)
	f.reqs = append(f.reqs, req)
	if f.failAt > 0 && i+1 == f.failAt {
		return nil, errors.New("model exploded")
	}
	rate := 24000
	if i < len(f.rate) {
		rate = f.rate[i]
	}
	return &tts.InferenceResult{
		Samples:    []float32{0.5, -0.5, float32(i) / 10},
		SampleRate: rate,
		State:      tts.StyleState{float32(i + 1)},
		Alignment:  f.alignment,
	}, nil
}

func fixedNoise(n int) []float32 { return make([]float32, n) }

func newSynth(t *testing.T, v tts.Vocoder) (*tts.Synthesizer, *tempfiles.Dir) {
	t.Helper()
	dir, err := tempfiles.New(t.TempDir())
	require.NoError(t, err)
	return tts.NewSynthesizer(v, dir, tts.DefaultParams(), fixedNoise), dir
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"Hello world. How are you", []string{"Hello world.", "How are you."}},
		{"  One.. Two.  ", []string{"One.", "Two."}},
		{"No period", []string{"No period."}},
		{"...", nil},
		{"   ", nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tts.SplitSentences(tt.in), "input %q", tt.in)
	}
}

func TestSynthesizeThreadsStyleState(t *testing.T) {
	t.Parallel()

	v := &fakeVocoder{}
	s, _ := newSynth(t, v)

	out, err := s.Synthesize(context.Background(), "First. Second. Third.")
	require.NoError(t, err)

	require.Len(t, v.reqs, 3)
	assert.Nil(t, v.reqs[0].Prev)
	assert.Equal(t, tts.StyleState{1}, v.reqs[1].Prev)
	assert.Equal(t, tts.StyleState{2}, v.reqs[2].Prev)
	for _, req := range v.reqs {
		assert.Len(t, req.Noise, tts.NoiseDim)
		assert.InDelta(t, 0.7, req.Alpha, 1e-9)
		assert.Equal(t, 20, req.DiffusionSteps)
		assert.InDelta(t, 1.0, req.EmbeddingScale, 1e-9)
	}
	assert.Equal(t, "Second.", v.reqs[1].Text)

	assert.Equal(t, 24000, out.SampleRate)
	assert.Equal(t, 9, out.Samples)
	require.Len(t, out.Sentences, 3)
	assert.Nil(t, out.Durations())

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	samples, info, err := audio.DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 24000, info.SampleRate)
	assert.Len(t, samples, 9)
}

func TestSynthesizeRecordsDurations(t *testing.T) {
	t.Parallel()

	// 3x3 padded grid, valid region 2 frames x 2 tokens.
	scores, err := align.MatrixFrom([][]float64{
		{1, -5, 0},
		{1, 1, 0},
		{0, 0, 0},
	})
	require.NoError(t, err)

	v := &fakeVocoder{alignment: &tts.Alignment{Scores: scores, Frames: 2, Tokens: 2}}
	s, _ := newSynth(t, v)

	out, err := s.Synthesize(context.Background(), "One. Two.")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1}, out.Sentences[0].Durations)
	assert.Equal(t, []int{1, 1, 1, 1}, out.Durations())
	assert.Equal(t, 4, out.Frames())
}

func TestSynthesizeAlignmentWithoutLengthsUsesWholeGrid(t *testing.T) {
	t.Parallel()

	scores, err := align.MatrixFrom([][]float64{
		{1, -5},
		{1, 1},
	})
	require.NoError(t, err)

	v := &fakeVocoder{alignment: &tts.Alignment{Scores: scores}}
	s, _ := newSynth(t, v)

	out, err := s.Synthesize(context.Background(), "hi.")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, out.Durations())
	assert.Equal(t, 2, out.Frames())
}

func TestSynthesizeKeepsAudioWhenAlignmentInvalid(t *testing.T) {
	t.Parallel()

	scores := align.NewMatrix(2, 2)
	scores.Data[0] = math.NaN()
	v := &fakeVocoder{alignment: &tts.Alignment{Scores: scores, Frames: 2, Tokens: 2}}
	s, _ := newSynth(t, v)

	out, err := s.Synthesize(context.Background(), "Only one.")
	require.NoError(t, err)
	assert.Nil(t, out.Sentences[0].Durations)
	assert.Equal(t, 3, out.Samples)
}

func TestSynthesizeErrors(t *testing.T) {
	t.Parallel()

	t.Run("empty text", func(t *testing.T) {
		s, _ := newSynth(t, &fakeVocoder{})
		_, err := s.Synthesize(context.Background(), " .. ")
		assert.ErrorIs(t, err, tts.ErrEmptyText)
	})

	t.Run("vocoder failure", func(t *testing.T) {
		s, dir := newSynth(t, &fakeVocoder{failAt: 2})
		_, err := s.Synthesize(context.Background(), "A. B. C.")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sentence 1")

		entries, err := os.ReadDir(dir.Path())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("sample rate change", func(t *testing.T) {
		s, _ := newSynth(t, &fakeVocoder{rate: []int{24000, 22050}})
		_, err := s.Synthesize(context.Background(), "A. B.")
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s, _ := newSynth(t, &fakeVocoder{})
		_, err := s.Synthesize(ctx, "A.")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGaussianNoise(t *testing.T) {
	t.Parallel()

	noise := tts.GaussianNoise(tts.NoiseDim)
	require.Len(t, noise, tts.NoiseDim)

	var sum float64
	for _, v := range noise {
		sum += float64(v)
	}
	// Mean of 256 standard normals is within 0.5 of zero with overwhelming probability.
	assert.InDelta(t, 0, sum/float64(len(noise)), 0.5)
}

func TestStyleTTSInfer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/infer" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		assert.Equal(t, "Hello.", body["text"])
		assert.Len(t, body["noise"], 4)
		assert.EqualValues(t, 20, body["diffusion_steps"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"samples": [0.25, -0.25],
			"sample_rate": 24000,
			"style": [0.5, 0.5],
			"alignment": {"scores": [[1, 0], [0, 1]], "frames": 2, "tokens": 2}
		}`))
	}))
	defer srv.Close()

	v := tts.NewStyleTTS(tts.StyleTTSConfig{BaseURL: srv.URL})
	res, err := v.Infer(context.Background(), tts.InferenceRequest{
		Text:           "Hello.",
		Noise:          []float32{0, 0, 0, 0},
		DiffusionSteps: 20,
	})
	require.NoError(t, err)

	assert.Equal(t, []float32{0.25, -0.25}, res.Samples)
	assert.Equal(t, 24000, res.SampleRate)
	assert.Equal(t, tts.StyleState{0.5, 0.5}, res.State)
	require.NotNil(t, res.Alignment)
	assert.Equal(t, 2, res.Alignment.Scores.Rows)
	assert.Equal(t, 2, res.Alignment.Frames)
}

func TestStyleTTSDefaultsSampleRate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"samples": [0.1], "style": []}`))
	}))
	defer srv.Close()

	res, err := tts.NewStyleTTS(tts.StyleTTSConfig{BaseURL: srv.URL, SampleRate: 22050}).
		Infer(context.Background(), tts.InferenceRequest{Text: "x."})
	require.NoError(t, err)
	assert.Equal(t, 22050, res.SampleRate)
	assert.Nil(t, res.Alignment)
}

func TestStyleTTSUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "cuda out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := tts.NewStyleTTS(tts.StyleTTSConfig{BaseURL: srv.URL}).
		Infer(context.Background(), tts.InferenceRequest{Text: "x."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestOpenAIInfer(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(16384))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(0))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		assert.Equal(t, "pcm", body["response_format"])
		assert.Equal(t, "Hi.", body["input"])
		_, _ = w.Write(pcm)
	}))
	defer srv.Close()

	v := tts.NewOpenAI(tts.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	prev := tts.StyleState{3}
	res, err := v.Infer(context.Background(), tts.InferenceRequest{Text: "Hi.", Prev: prev})
	require.NoError(t, err)

	assert.Equal(t, 24000, res.SampleRate)
	require.Len(t, res.Samples, 2)
	assert.InDelta(t, 0.5, res.Samples[0], 1e-3)
	assert.Equal(t, prev, res.State)
}

func TestPiperRequiresModel(t *testing.T) {
	t.Parallel()

	_, err := tts.NewPiper(tts.PiperConfig{}).Infer(context.Background(), tts.InferenceRequest{Text: "x."})
	assert.ErrorIs(t, err, tts.ErrPiperModelMissing)
}

func TestNewVocoder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend string
		name    string
		wantErr bool
	}{
		{"styletts", "styletts2", false},
		{"", "styletts2", false},
		{"openai", "openai-tts", false},
		{"local", "local-piper", false},
		{"festival", "", true},
	}

	for _, tt := range tests {
		v, err := tts.NewVocoder(config.TTSConfig{Backend: tt.backend})
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.name, v.Name())
	}
}
