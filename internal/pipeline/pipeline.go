package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/boscokante/piano-midi-transcription/internal/audio"
	"github.com/boscokante/piano-midi-transcription/internal/cache"
	"github.com/boscokante/piano-midi-transcription/internal/midi"
	"github.com/boscokante/piano-midi-transcription/internal/transcribe"
	"github.com/boscokante/piano-midi-transcription/internal/workspace"
)

// Timeouts per stage; transcription dominates on long recordings
const (
	NormalizeTimeout  = 2 * time.Minute
	TranscribeTimeout = 10 * time.Minute
)

// Observer receives stage progress notifications
type Observer interface {
	Stage(name, description string)
	Info(format string, args ...any)
}

// nopObserver ignores all notifications
type nopObserver struct{}

func (nopObserver) Stage(string, string) {}
func (nopObserver) Info(string, ...any)  {}

// Result holds the outcome of a transcription run
type Result struct {
	MIDIPath  string
	NotesPath string
	Format    audio.Format
	Probe     *audio.Probe
	Summary   *midi.Summary
	CacheHit  bool
	Elapsed   time.Duration
}

// Pipeline orchestrates validate → normalize → transcribe → summarize
type Pipeline struct {
	normalizer *audio.Normalizer
	engine     transcribe.Engine
	cache      *cache.ResultCache // nil disables caching
	maxInput   int64
}

// New creates a pipeline. cache may be nil to disable result caching;
// maxInput of zero applies audio.DefaultMaxFileSize.
func New(normalizer *audio.Normalizer, engine transcribe.Engine, c *cache.ResultCache, maxInput int64) *Pipeline {
	return &Pipeline{normalizer: normalizer, engine: engine, cache: c, maxInput: maxInput}
}

// Run transcribes inputPath, placing intermediate files in ws. The
// returned paths live inside ws (or the cache on a hit) and remain valid
// until the workspace is cleaned up.
func (p *Pipeline) Run(ctx context.Context, ws *workspace.Workspace, inputPath string, obs Observer) (*Result, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	start := time.Now()
	res := &Result{}

	obs.Stage("validate", "Validating input file...")
	format, err := audio.ValidateInput(inputPath, p.maxInput)
	if err != nil {
		return nil, err
	}
	res.Format = format
	obs.Info("valid %s file", format)

	// Cache lookup is keyed on the raw upload so we can skip both
	// normalization and inference
	var cacheKey string
	if p.cache != nil {
		cacheKey, err = cache.KeyForFile(inputPath)
		if err == nil {
			if entry, ok := p.cache.Get(cacheKey); ok {
				obs.Info("cache hit (%s)", cacheKey)
				summary, err := midi.SummarizeFile(entry.MIDIPath)
				if err == nil {
					res.MIDIPath = entry.MIDIPath
					res.NotesPath = entry.NotesPath
					res.Summary = summary
					res.CacheHit = true
					res.Elapsed = time.Since(start)
					return res, nil
				}
				// Unreadable cached MIDI: fall through and re-transcribe
			}
		}
	}

	obs.Stage("normalize", "Converting audio...")
	normCtx, cancel := context.WithTimeout(ctx, NormalizeTimeout)
	defer cancel()

	probe, err := p.normalizer.Normalize(normCtx, inputPath, ws.NormalizedWAV(), format)
	if err != nil {
		return nil, err
	}
	res.Probe = probe
	obs.Info("%.1fs of audio at %d Hz", probe.Duration, probe.SampleRate)

	obs.Stage("transcribe", "Transcribing to MIDI... (this may take a moment)")
	transCtx, cancel2 := context.WithTimeout(ctx, TranscribeTimeout)
	defer cancel2()

	if err := p.engine.Transcribe(transCtx, ws.NormalizedWAV(), ws.OutputMIDI()); err != nil {
		return nil, err
	}
	res.MIDIPath = ws.OutputMIDI()

	obs.Stage("summarize", "Reading transcription...")
	summary, err := midi.SummarizeFile(res.MIDIPath)
	if err != nil {
		return nil, fmt.Errorf("summarize midi: %w", err)
	}
	res.Summary = summary
	obs.Info("%d notes, %.1fs", summary.NoteCount, summary.Duration)

	if err := midi.ExportNotes(summary.Notes, summary.Pedals, ws.NotesJSON()); err != nil {
		return nil, err
	}
	res.NotesPath = ws.NotesJSON()

	if p.cache != nil && cacheKey != "" {
		entry, err := p.cache.Put(cacheKey, res.MIDIPath, res.NotesPath, &cache.Meta{
			NoteCount: summary.NoteCount,
			Duration:  summary.Duration,
		})
		if err != nil {
			obs.Info("cache write failed: %v", err)
		} else {
			// Serve from the cache copy so the workspace can be reclaimed
			res.MIDIPath = entry.MIDIPath
			res.NotesPath = entry.NotesPath
		}
	}

	res.Elapsed = time.Since(start)
	return res, nil
}
