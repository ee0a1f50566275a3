package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/boscokante/piano-midi-transcription/internal/audio"
)

// handleIndex serves the main upload page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index.html", map[string]any{
		"Formats": strings.Join(audio.SupportedExtensions, ", "),
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleUpload accepts an audio file and starts a transcription job
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUpload)

	if err := r.ParseMultipartForm(s.config.MaxUpload); err != nil {
		s.renderError(w, fmt.Sprintf("File too large. Maximum size is %dMB.", s.config.MaxUpload/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.renderError(w, "Please upload an audio file.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !audio.IsSupportedExtension(header.Filename) {
		s.renderError(w, "Unsupported format. Please upload a WAV, MP3, M4A, FLAC or OGG file.", http.StatusBadRequest)
		return
	}

	job, err := s.jobs.Create()
	if err != nil {
		s.logger.Error("create job", "error", err)
		s.renderError(w, "Failed to start job.", http.StatusInternalServerError)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	inputPath := job.Workspace.InputCopy(ext)
	dst, err := os.Create(inputPath)
	if err != nil {
		s.jobs.Discard(job)
		s.renderError(w, "Failed to save file.", http.StatusInternalServerError)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		s.jobs.Discard(job)
		s.renderError(w, "Failed to save file.", http.StatusInternalServerError)
		return
	}

	job.InputPath = inputPath
	job.Filename = header.Filename

	// Start processing in background
	go s.jobs.Process(job)

	// Return processing partial with job ID for polling
	s.render(w, "processing.html", map[string]any{
		"JobID":    job.ID,
		"Filename": header.Filename,
	})
}

// handleStatus streams job progress via SSE
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job := s.jobs.Get(jobID)

	if job == nil {
		s.renderError(w, "Job not found.", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case update, open := <-job.Updates:
			if !open {
				fmt.Fprintf(w, "event: done\ndata: %s\n\n", job.Status())
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "event: progress\n")
			fmt.Fprintf(w, "data: %s\n\n", update)
			flusher.Flush()

			if st := job.Status(); st == StatusComplete || st == StatusFailed {
				fmt.Fprintf(w, "event: done\ndata: %s\n\n", st)
				flusher.Flush()
				return
			}
		}
	}
}

// handleResult returns the final result page
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job := s.jobs.Get(jobID)

	if job == nil {
		s.renderError(w, "Job not found.", http.StatusNotFound)
		return
	}

	switch job.Status() {
	case StatusFailed:
		s.render(w, "error.html", map[string]any{
			"Error": job.Err(),
		})
		return
	case StatusComplete:
	default:
		s.render(w, "processing.html", map[string]any{
			"JobID":    job.ID,
			"Filename": job.Filename,
			"Stage":    job.Stage(),
		})
		return
	}

	result := job.Result()
	sum := result.Summary
	s.render(w, "result.html", map[string]any{
		"JobID":      job.ID,
		"Filename":   job.Filename,
		"NoteCount":  sum.NoteCount,
		"Duration":   fmt.Sprintf("%.1fs", sum.Duration),
		"PitchRange": fmt.Sprintf("%d–%d", sum.MinPitch, sum.MaxPitch),
		"Sustain":    sum.SustainCount,
		"CacheHit":   result.CacheHit,
	})
}

// handleDownloadMIDI serves the transcribed MIDI file
func (s *Server) handleDownloadMIDI(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job := s.jobs.Get(jobID)

	if job == nil || job.Status() != StatusComplete {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	midiPath := job.Result().MIDIPath
	if _, err := os.Stat(midiPath); os.IsNotExist(err) {
		http.Error(w, "MIDI file not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", midiFilename(job.Filename)))
	http.ServeFile(w, r, midiPath)
}

// handleDownloadNotes serves the per-note JSON export
func (s *Server) handleDownloadNotes(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	job := s.jobs.Get(jobID)

	if job == nil || job.Status() != StatusComplete || job.Result().NotesPath == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=\"notes.json\"")
	http.ServeFile(w, r, job.Result().NotesPath)
}

// midiFilename derives the download name from the upload basename
func midiFilename(uploaded string) string {
	base := filepath.Base(uploaded)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "transcription"
	}
	return base + ".mid"
}

// render renders a template
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template error", "template", name, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// renderError renders an error message
func (s *Server) renderError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	s.templates.ExecuteTemplate(w, "error.html", map[string]any{
		"Error": message,
	})
}
