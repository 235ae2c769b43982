package renderjob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrJobFailed       = errors.New("render job failed")
	ErrJobNotFound     = errors.New("render job not found")
	ErrUnexpectedReply = errors.New("unexpected render service reply")
)

const (
	StatusQueued     = "queued"
	StatusStarting   = "starting"
	StatusRendering  = "rendering"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

type Request struct {
	SFZName    string
	SampleRate int
}

// TranscribeRequest carries the options of an audio to MIDI job.
type TranscribeRequest struct {
	// UseDemucs separates the piano stem before transcribing.
	UseDemucs bool
	Profile   string
}

type Status struct {
	JobID    string  `json:"job_id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	WavURL   string  `json:"wav_url"`
	MidiURL  string  `json:"midi_url"`
	Notes    int     `json:"notes"`
	Error    string  `json:"error"`
}

func (s Status) Done() bool {
	return s.Status == StatusDone
}

func (s Status) Failed() bool {
	return s.Status == StatusError
}

// Artifact is the url of whatever the finished job produced.
func (s Status) Artifact() string {
	if s.WavURL != "" {
		return s.WavURL
	}
	return s.MidiURL
}

// jobKind describes the endpoints of one kind of job on the service.
type jobKind struct {
	name       string
	startPath  string
	statusPath string
	fileField  string
}

var (
	renderKind     = jobKind{name: "render", startPath: "/render_sfizz_start", statusPath: "/job/", fileField: "midi"}
	transcribeKind = jobKind{name: "transcribe", startPath: "/transcribe_start", statusPath: "/status/", fileField: "file"}
)

// Client talks to the remote render service: submit, poll, fetch.
type Client struct {
	base         *url.URL
	httpClient   *http.Client
	log          *zap.Logger
	pollInterval time.Duration
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing render service url: %w", err)
	}
	c := &Client{
		base:         base,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		log:          zap.NewNop(),
		pollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrJobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnexpectedReply, req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrUnexpectedReply, req.URL.Path, err)
	}
	return nil
}

// start uploads one file with its form fields and returns the job id.
func (c *Client) start(ctx context.Context, kind jobKind, fileName string, data []byte, fields map[string]string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(kind.fileField, fileName)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return "", fmt.Errorf("writing %s field: %w", key, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(kind.startPath), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var st Status
	if err := c.do(req, &st); err != nil {
		return "", err
	}
	if st.JobID == "" {
		return "", fmt.Errorf("%w: no job id", ErrUnexpectedReply)
	}
	c.log.Info(kind.name+" job started", zap.String("job", st.JobID), zap.String("file", fileName))
	return st.JobID, nil
}

// Start uploads the MIDI file and returns the job id.
func (c *Client) Start(ctx context.Context, midi []byte, r Request) (string, error) {
	var fields = map[string]string{}
	if r.SFZName != "" {
		fields["sfz_name"] = r.SFZName
	}
	if r.SampleRate > 0 {
		fields["sr"] = strconv.Itoa(r.SampleRate)
	}
	return c.start(ctx, renderKind, "input.mid", midi, fields)
}

// StartTranscription uploads an audio file and returns the job id.
func (c *Client) StartTranscription(ctx context.Context, fileName string, audio []byte, r TranscribeRequest) (string, error) {
	var fields = map[string]string{"use_demucs": strconv.FormatBool(r.UseDemucs)}
	if r.Profile != "" {
		fields["profile"] = r.Profile
	}
	return c.start(ctx, transcribeKind, fileName, audio, fields)
}

func (c *Client) status(ctx context.Context, kind jobKind, jobID string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(kind.statusPath+url.PathEscape(jobID)), nil)
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := c.do(req, &st); err != nil {
		return Status{}, err
	}
	st.JobID = jobID
	return st, nil
}

func (c *Client) Status(ctx context.Context, jobID string) (Status, error) {
	return c.status(ctx, renderKind, jobID)
}

func (c *Client) TranscriptionStatus(ctx context.Context, jobID string) (Status, error) {
	return c.status(ctx, transcribeKind, jobID)
}

func (c *Client) wait(ctx context.Context, kind jobKind, jobID string, onProgress func(Status)) (Status, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		st, err := c.status(ctx, kind, jobID)
		if err != nil {
			return st, err
		}
		if onProgress != nil {
			onProgress(st)
		}
		c.log.Debug(kind.name+" job status", zap.String("job", jobID), zap.String("status", st.Status), zap.Float64("progress", st.Progress))

		switch {
		case st.Failed():
			return st, fmt.Errorf("%w: %s", ErrJobFailed, st.Error)
		case st.Done():
			if st.Artifact() == "" {
				return st, fmt.Errorf("%w: job %s done without an artifact", ErrUnexpectedReply, jobID)
			}
			return st, nil
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait polls until the job is done, failed, or ctx ends. onProgress may be nil.
func (c *Client) Wait(ctx context.Context, jobID string, onProgress func(Status)) (Status, error) {
	return c.wait(ctx, renderKind, jobID, onProgress)
}

func (c *Client) WaitTranscription(ctx context.Context, jobID string, onProgress func(Status)) (Status, error) {
	return c.wait(ctx, transcribeKind, jobID, onProgress)
}

// Fetch downloads an artifact. Relative urls are resolved against the service.
func (c *Client) Fetch(ctx context.Context, artifact string) ([]byte, error) {
	ref, err := url.Parse(artifact)
	if err != nil {
		return nil, fmt.Errorf("parsing artifact url: %w", err)
	}
	var target = c.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching %s returned %d", ErrUnexpectedReply, target, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) run(ctx context.Context, kind jobKind, jobID string) ([]byte, error) {
	st, err := c.wait(ctx, kind, jobID, nil)
	if err != nil {
		return nil, err
	}
	data, err := c.Fetch(ctx, st.Artifact())
	if err != nil {
		return nil, err
	}
	c.log.Info(kind.name+" job fetched", zap.String("job", jobID), zap.Int("bytes", len(data)))
	return data, nil
}

// RenderSFZ runs a whole job and returns the WAV bytes.
func (c *Client) RenderSFZ(ctx context.Context, midi []byte, sfzName string, sampleRate int) ([]byte, error) {
	jobID, err := c.Start(ctx, midi, Request{SFZName: sfzName, SampleRate: sampleRate})
	if err != nil {
		return nil, err
	}
	return c.run(ctx, renderKind, jobID)
}

// Transcribe turns an audio recording into a MIDI file on the service.
func (c *Client) Transcribe(ctx context.Context, fileName string, audio []byte, r TranscribeRequest) ([]byte, error) {
	jobID, err := c.StartTranscription(ctx, fileName, audio, r)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, transcribeKind, jobID)
}
