package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"pianoroll/config"
	"pianoroll/midiparser"
	"pianoroll/onset"
	"pianoroll/renderjob"
	"pianoroll/timeline"
	"pianoroll/util"
)

const maxUploadBytes = 32 << 20

// Transcriber turns an audio recording into MIDI. *renderjob.Client
// satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, fileName string, audio []byte, r renderjob.TranscribeRequest) ([]byte, error)
}

// Server exposes an Engine over HTTP. Frames can be asked for at any time,
// or for "now" on the engine's own clock.
type Server struct {
	engine         *timeline.Engine
	onsetCfg       onset.Config
	allowedOrigins []string
	transcriber    Transcriber
	transcribeOpts renderjob.TranscribeRequest
	maxUpload      int64
	log            *zap.Logger
}

type Option func(*Server)

// WithTranscriber enables POST /transcribe.
func WithTranscriber(t Transcriber) Option {
	return func(s *Server) {
		s.transcriber = t
	}
}

func New(engine *timeline.Engine, cfg *config.Config, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine:         engine,
		onsetCfg:       cfg.Onset,
		allowedOrigins: cfg.Server.AllowedOrigins,
		transcribeOpts: renderjob.TranscribeRequest{
			UseDemucs: cfg.Transcribe.UseDemucs,
			Profile:   cfg.Transcribe.Profile,
		},
		maxUpload: maxUploadBytes,
		log:       log.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type timelineSummary struct {
	ID                   string    `json:"id"`
	Generation           uint64    `json:"generation"`
	Source               string    `json:"source"`
	LoadedAt             time.Time `json:"loadedAt"`
	Notes                int       `json:"notes"`
	Tracks               int       `json:"tracks"`
	Format               uint16    `json:"format"`
	TotalDurationSeconds float64   `json:"totalDurationSeconds"`
	Placeholder          bool      `json:"placeholder"`
	Warnings             []string  `json:"warnings"`
	Error                string    `json:"error,omitempty"`
}

func summarize(snap *timeline.Snapshot) timelineSummary {
	var tl = snap.Timeline
	var warnings = make([]string, 0, len(tl.Warnings))
	for _, w := range tl.Warnings {
		warnings = append(warnings, w.Error())
	}
	return timelineSummary{
		ID:                   snap.ID.String(),
		Generation:           snap.Generation,
		Source:               snap.Source,
		LoadedAt:             snap.LoadedAt,
		Notes:                len(tl.Notes),
		Tracks:               tl.TrackCount,
		Format:               tl.Format,
		TotalDurationSeconds: tl.TotalDurationSeconds,
		Placeholder:          tl.Placeholder,
		Warnings:             warnings,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"timeline": s.engine.Snapshot().ID.String(),
	})
}

// readUpload accepts either a raw body or a multipart form with the file in
// field. Bodies over the server's limit fail with *http.MaxBytesError.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field, defaultName string) (string, []byte, error) {
	var name = r.URL.Query().Get("name")
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.maxUpload); err != nil {
			return "", nil, err
		}
		f, header, err := r.FormFile(field)
		if err != nil {
			return "", nil, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if name == "" {
			name = header.Filename
		}
		return name, data, err
	}

	data, err := io.ReadAll(r.Body)
	if name == "" {
		name = defaultName
	}
	return name, data, err
}

func uploadStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// writeLoad reports the outcome of an engine load.
func writeLoad(w http.ResponseWriter, res timeline.LoadResult) {
	switch {
	case res.Snapshot == nil:
		writeError(w, http.StatusServiceUnavailable, res.Err)
		return
	case res.Stale:
		writeError(w, http.StatusConflict, errors.New("a newer timeline was loaded first"))
		return
	}

	summary := summarize(res.Snapshot)
	if res.Err != nil {
		summary.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) loadTimeline(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.readUpload(w, r, "midi", "upload.mid")
	if err != nil {
		writeError(w, uploadStatus(err), fmt.Errorf("reading upload: %w", err))
		return
	}
	writeLoad(w, s.engine.LoadSync(r.Context(), name, data))
}

// transcribe sends an audio upload to the transcription service and loads
// the MIDI it returns.
func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no transcription service configured"))
		return
	}
	name, audio, err := s.readUpload(w, r, "file", "upload.wav")
	if err != nil {
		writeError(w, uploadStatus(err), fmt.Errorf("reading upload: %w", err))
		return
	}

	var opts = s.transcribeOpts
	if v := r.FormValue("use_demucs"); v != "" {
		if opts.UseDemucs, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("bad use_demucs: %w", err))
			return
		}
	}
	if v := r.FormValue("profile"); v != "" {
		opts.Profile = v
	}

	midi, err := s.transcriber.Transcribe(r.Context(), name, audio, opts)
	if err != nil {
		s.log.Error("transcription failed", zap.String("file", name), zap.Error(err))
		writeError(w, http.StatusBadGateway, fmt.Errorf("transcribing: %w", err))
		return
	}
	s.log.Info("transcribed", zap.String("file", name), zap.Int("midiBytes", len(midi)))
	writeLoad(w, s.engine.LoadSync(r.Context(), util.FileNameWithoutExtension(name)+".mid", midi))
}

func (s *Server) timeline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, summarize(s.engine.Snapshot()))
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	var raw = r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s: %w", key, err)
	}
	return v, nil
}

// notes lists notes that sound at some point in [from, to).
func (s *Server) notes(w http.ResponseWriter, r *http.Request) {
	var tl = s.engine.Snapshot().Timeline
	from, err := queryFloat(r, "from", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := queryFloat(r, "to", tl.TotalDurationSeconds)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var out = make([]midiparser.NoteEvent, 0)
	for _, n := range tl.Notes {
		if n.StartSeconds >= to {
			break
		}
		if n.EndSeconds() > from {
			out = append(out, n)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// frame renders the scene at t with its own viewport and a fresh detector.
// Without t it returns the engine's live frame.
func (s *Server) frame(w http.ResponseWriter, r *http.Request) {
	var q = r.URL.Query()
	if q.Get("t") == "" {
		writeJSON(w, http.StatusOK, s.engine.Frame())
		return
	}

	var params = map[string]float64{"t": 0, "zoom": 1, "mag": 1, "panX": 0, "panY": 0, "speed": 1}
	for key, def := range params {
		v, err := queryFloat(r, key, def)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		params[key] = v
	}
	if params["t"] < 0 {
		writeError(w, http.StatusBadRequest, errors.New("bad t: must not be negative"))
		return
	}

	vp := s.engine.Viewport()
	vp.SetZoom(params["zoom"])
	vp.SetMagnification(params["mag"])
	vp.SetPan(params["panX"], params["panY"])

	f := timeline.BuildFrame(s.engine.Snapshot(), &vp, onset.New(s.onsetCfg), params["t"], params["t"])
	f.Speed = params["speed"]
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().StrictSlash(true)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/timeline", s.loadTimeline).Methods(http.MethodPost)
	r.HandleFunc("/timeline", s.timeline).Methods(http.MethodGet)
	r.HandleFunc("/timeline/notes", s.notes).Methods(http.MethodGet)
	r.HandleFunc("/transcribe", s.transcribe).Methods(http.MethodPost)
	r.HandleFunc("/frame", s.frame).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	})
	return c.Handler(r)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("running server", zap.String("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
