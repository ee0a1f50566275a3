package server

import (
	"bytes"
	"context"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/boscokante/piano-midi-transcription/internal/audio"
	"github.com/boscokante/piano-midi-transcription/internal/exec"
	"github.com/boscokante/piano-midi-transcription/internal/pipeline"
)

// stubEngine writes a single-note MIDI file
type stubEngine struct{}

func (stubEngine) Transcribe(ctx context.Context, audioPath, midiPath string) error {
	clock := smf.MetricTicks(960)
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(clock.Ticks4th(), gomidi.NoteOff(0, 60))
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = clock
	if err := s.Add(tr); err != nil {
		return err
	}

	f, err := os.Create(midiPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = s.WriteTo(f)
	return err
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	runner := exec.NewRunner("/nonexistent/ffmpeg", "python3", t.TempDir())
	p := pipeline.New(audio.NewNormalizer(runner), stubEngine{}, nil, 0)

	srv, err := New(Config{
		Port:      0,
		MaxUpload: 10 * 1024 * 1024,
		JobTTL:    time.Minute,
	}, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

// modelWAVBytes synthesizes a mono 16kHz WAV upload body
func modelWAVBytes(t *testing.T) []byte {
	t.Helper()

	var buf writeSeekBuffer
	enc := wav.NewEncoder(&buf, audio.ModelSampleRate, 16, 1, 1)
	n := audio.ModelSampleRate / 8
	data := make([]int, n)
	for i := range data {
		data[i] = int(9000 * math.Sin(2*math.Pi*440*float64(i)/float64(audio.ModelSampleRate)))
	}
	b := &gaudio.IntBuffer{
		Data:           data,
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: audio.ModelSampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(b); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.data
}

// writeSeekBuffer implements io.WriteSeeker over a byte slice for the encoder
type writeSeekBuffer struct {
	data []byte
	pos  int
}

func (b *writeSeekBuffer) Write(p []byte) (int, error) {
	if b.pos+len(p) > len(b.data) {
		grown := make([]byte, b.pos+len(p))
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *writeSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		b.pos = int(offset)
	case io.SeekCurrent:
		b.pos += int(offset)
	case io.SeekEnd:
		b.pos = len(b.data) + int(offset)
	}
	return int64(b.pos), nil
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func waitForJob(t *testing.T, s *Server, id string) *Job {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job := s.jobs.Get(id)
		if job != nil {
			if st := job.Status(); st == StatusComplete || st == StatusFailed {
				return job
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return nil
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestIndex(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Transcribe") {
		t.Error("index page missing upload form")
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, uploadRequest(t, "track.aiff", []byte("data")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unsupported format") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadToDownloadFlow(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, uploadRequest(t, "sonata.wav", modelWAVBytes(t)))

	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}

	// The processing partial carries the job id
	body := rec.Body.String()
	marker := `data-job-id="`
	idx := strings.Index(body, marker)
	if idx < 0 {
		t.Fatalf("no job id in response: %s", body)
	}
	rest := body[idx+len(marker):]
	jobID := rest[:strings.Index(rest, `"`)]

	job := waitForJob(t, s, jobID)
	if job.Status() != StatusComplete {
		t.Fatalf("job failed: %s", job.Err())
	}

	// Result page shows the summary
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/result/"+jobID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("result status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Download MIDI") {
		t.Error("result page missing download link")
	}

	// MIDI download is named after the upload
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/"+jobID+"/midi", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/midi" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "sonata.mid") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("MThd")) {
		t.Error("download is not a standard MIDI file")
	}

	// Notes export downloads too
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/"+jobID+"/notes", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("notes status = %d", rec.Code)
	}
}

func TestDownloadUnknownJob(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/nope/midi", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMidiFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sonata.mp3", "sonata.mid"},
		{"dir/nocturne.flac", "nocturne.mid"},
		{"", "transcription.mid"},
	}
	for _, tt := range tests {
		if got := midiFilename(tt.in); got != tt.want {
			t.Errorf("midiFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
