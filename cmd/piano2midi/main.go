package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/boscokante/piano-midi-transcription/internal/audio"
	"github.com/boscokante/piano-midi-transcription/internal/cache"
	"github.com/boscokante/piano-midi-transcription/internal/config"
	"github.com/boscokante/piano-midi-transcription/internal/exec"
	"github.com/boscokante/piano-midi-transcription/internal/pipeline"
	"github.com/boscokante/piano-midi-transcription/internal/progress"
	"github.com/boscokante/piano-midi-transcription/internal/server"
	"github.com/boscokante/piano-midi-transcription/internal/transcribe"
	"github.com/boscokante/piano-midi-transcription/internal/workspace"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "piano2midi",
	Short: "Transcribe piano recordings to MIDI",
	Long: `piano2midi converts piano recordings (mp3, wav, m4a, flac, ogg)
into standard MIDI files using a neural transcription model.

Pipeline: audio → format normalization (ffmpeg) → transcription → MIDI`,
	Version: version,
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe an audio file to MIDI",
	Long: `Transcribe a piano recording into a standard MIDI file.

Examples:
  piano2midi transcribe --input recital.mp3
  piano2midi transcribe -i clip.wav -o clip.mid --notes notes.json`,
	RunE: runTranscribe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface",
	Long: `Start the web interface for uploading recordings and downloading
the transcribed MIDI.

Example:
  piano2midi serve --port 7860`,
	RunE: runServe,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the transcription result cache",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache size and entry count",
	RunE:  runCacheInfo,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached results",
	RunE:  runCacheClear,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that external tools are installed",
	RunE:  runDoctor,
}

var (
	// transcribe flags
	inputPath  string
	outputPath string
	notesPath  string
	verbose    bool
	noCache    bool

	// serve flags
	port int
)

func init() {
	transcribeCmd.Flags().StringVarP(&inputPath, "input", "i", "", "input audio file (required)")
	transcribeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output MIDI file (default: input basename + .mid)")
	transcribeCmd.Flags().StringVar(&notesPath, "notes", "", "also write per-note JSON to this path")
	transcribeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose progress output")
	transcribeCmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the result cache")
	transcribeCmd.MarkFlagRequired("input")

	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")

	cacheCmd.AddCommand(cacheInfoCmd, cacheClearCmd)
	rootCmd.AddCommand(transcribeCmd, serveCmd, cacheCmd, doctorCmd)
}

// buildPipeline wires the shared pipeline from configuration
func buildPipeline(cfg *config.Config, useCache bool) (*pipeline.Pipeline, *transcribe.PianoEngine, error) {
	runner := exec.NewRunner(cfg.Tools.FFmpeg, cfg.Tools.Python, cfg.Tools.ScriptsDir)
	normalizer := audio.NewNormalizer(runner)
	engine := transcribe.NewPianoEngine(runner, cfg.Tools.Checkpoint)

	var c *cache.ResultCache
	if useCache && cfg.Cache.Enabled {
		var err error
		c, err = cache.New(cfg.Cache.Dir, cfg.Tools.ScriptsDir)
		if err != nil {
			return nil, nil, fmt.Errorf("init cache: %w", err)
		}
	}

	return pipeline.New(normalizer, engine, c, cfg.MaxUploadBytes()), engine, nil
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	p, _, err := buildPipeline(cfg, !noCache)
	if err != nil {
		return err
	}

	ws, err := workspace.Create()
	if err != nil {
		return err
	}
	defer ws.Cleanup()

	reporter := progress.NewReporter(os.Stdout, verbose)

	result, err := p.Run(context.Background(), ws, inputPath, reporter)
	if err != nil {
		reporter.Error(err)
		return err
	}

	out := outputPath
	if out == "" {
		out = defaultOutputPath(inputPath)
	}
	if err := copyFile(result.MIDIPath, out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if notesPath != "" && result.NotesPath != "" {
		if err := copyFile(result.NotesPath, notesPath); err != nil {
			return fmt.Errorf("write notes: %w", err)
		}
	}

	if result.CacheHit {
		reporter.Warning("served from cache; use --no-cache to force re-transcription")
	}
	fmt.Printf("%d notes, %.1fs of music\n", result.Summary.NoteCount, result.Summary.Duration)
	reporter.Done(out)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	p, _, err := buildPipeline(cfg, true)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Port:      cfg.Server.Port,
		MaxUpload: cfg.MaxUploadBytes(),
		JobTTL:    time.Duration(cfg.Server.JobTTLMinutes) * time.Minute,
	}, p)
	if err != nil {
		return err
	}

	return srv.Run()
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	c, err := cache.New(cfg.Cache.Dir, cfg.Tools.ScriptsDir)
	if err != nil {
		return err
	}

	size, count, err := c.Size()
	if err != nil {
		return err
	}

	fmt.Printf("Cache directory: %s\n", cfg.Cache.Dir)
	fmt.Printf("Entries:         %d\n", count)
	fmt.Printf("Total size:      %.1f MB\n", float64(size)/(1024*1024))
	fmt.Printf("Version stamp:   %s\n", c.Version())
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	c, err := cache.New(cfg.Cache.Dir, cfg.Tools.ScriptsDir)
	if err != nil {
		return err
	}

	if err := c.Clear(); err != nil {
		return err
	}
	fmt.Println("Cache cleared.")
	return nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	_, engine, err := buildPipeline(cfg, false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := engine.CheckDependencies(ctx); err != nil {
		fmt.Printf("Not ready: %v\n", err)
		return err
	}

	fmt.Println("All external tools available. Ready to transcribe.")
	return nil
}

func defaultOutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".mid"
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
