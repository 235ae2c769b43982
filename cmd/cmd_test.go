package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pianoroll/config"
	"pianoroll/midiparser"
	"pianoroll/synth"
)

func TestInspectPrintsSummary(t *testing.T) {
	data, err := midiparser.PlaceholderSMF()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "arp.mid")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"inspect", "--notes", path})
	require.NoError(t, rootCmd.Execute())

	text := out.String()
	assert.Contains(t, text, "notes:         48")
	assert.Contains(t, text, "tempo:         tick 0  120.00 bpm")
	assert.Contains(t, text, "pitch  48")
}

func TestInspectReadsStdin(t *testing.T) {
	data, err := midiparser.PlaceholderSMF()
	require.NoError(t, err)

	var out bytes.Buffer
	rootCmd.SetIn(bytes.NewReader(data))
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"inspect", "-"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "notes:         48")
}

func TestInspectRejectsBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.mid")
	require.NoError(t, os.WriteFile(path, []byte("RIFF0000"), 0o644))

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"inspect", path})
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, midiparser.ErrInvalidHeader)
}

func TestResolveTarget(t *testing.T) {
	cfg := config.Default()

	target, err := resolveTarget(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, synth.KindSystem, target.Kind)

	target, err = resolveTarget(cfg, "none")
	require.NoError(t, err)
	assert.Equal(t, synth.RenderTarget{}, target)

	target, err = resolveTarget(cfg, "sf2:/tmp/piano.sf2")
	require.NoError(t, err)
	assert.Equal(t, synth.KindSF2, target.Kind)
	assert.Equal(t, "/tmp/piano.sf2", target.Path)

	_, err = resolveTarget(cfg, "cassette")
	assert.Error(t, err)
}

func TestNewRendererWithRenderService(t *testing.T) {
	cfg := config.Default()
	cfg.Synth.RenderServiceURL = "http://render.local:8000"

	r, err := newRenderer(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, r)

	cfg.Synth.RenderServiceURL = "::not a url"
	_, err = newRenderer(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestNewTranscriberNeedsService(t *testing.T) {
	cfg := config.Default()
	_, err := newTranscriber(cfg, zaptest.NewLogger(t))
	assert.True(t, errors.Is(err, errNoTranscribeService))

	cfg.Synth.RenderServiceURL = "http://render.local:8000"
	c, err := newTranscriber(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestTranscribeWritesMIDI(t *testing.T) {
	midi, err := midiparser.PlaceholderSMF()
	require.NoError(t, err)

	var gotAudio []byte
	var gotProfile string
	r := mux.NewRouter()
	r.HandleFunc("/transcribe_start", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		gotAudio, _ = io.ReadAll(file)
		gotProfile = r.FormValue("profile")
		json.NewEncoder(w).Encode(map[string]string{"status": "queued", "job_id": "j1"})
	}).Methods(http.MethodPost)
	r.HandleFunc("/status/j1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "done", "midi_url": "/outputs/j1/output.mid"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/outputs/j1/output.mid", func(w http.ResponseWriter, r *http.Request) {
		w.Write(midi)
	}).Methods(http.MethodGet)
	srv := httptest.NewServer(r)
	defer srv.Close()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Transcribe.ServiceURL = srv.URL
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, cfg.Save(cfgPath))

	audioPath := filepath.Join(dir, "take1.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("RIFF-audio"), 0o644))
	outPath := filepath.Join(dir, "take1.mid")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"transcribe", "--config", cfgPath, "--profile", "piano", "-o", outPath, audioPath})
	t.Cleanup(func() { configPath = "" })
	require.NoError(t, rootCmd.Execute())

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, midi, written)
	assert.Equal(t, []byte("RIFF-audio"), gotAudio)
	assert.Equal(t, "piano", gotProfile)
	assert.Contains(t, out.String(), "notes:         48")
}
