package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// scriptsToHash - files that affect transcription output (changing these
// invalidates cached results)
var scriptsToHash = []string{
	"transcribe.py",
}

// Entry represents a cached transcription result
type Entry struct {
	MIDIPath  string
	NotesPath string
	CacheKey  string
	CachedAt  time.Time
}

// Meta is stored alongside cached files
type Meta struct {
	NoteCount int       `json:"note_count"`
	Duration  float64   `json:"duration_seconds"`
	Filename  string    `json:"filename,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ResultCache stores transcription results keyed by input content hash
type ResultCache struct {
	dir     string
	version string
}

// New creates a result cache rooted at dir. scriptsDir points at the
// engine scripts whose content stamps the cache version.
func New(dir, scriptsDir string) (*ResultCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &ResultCache{
		dir:     dir,
		version: computeScriptVersion(scriptsDir),
	}, nil
}

// computeScriptVersion hashes every script that affects transcription
func computeScriptVersion(scriptsDir string) string {
	hasher := sha256.New()

	for _, script := range scriptsToHash {
		data, err := os.ReadFile(filepath.Join(scriptsDir, script))
		if err != nil {
			// Script not found - use filename as fallback
			hasher.Write([]byte(script))
			continue
		}
		hasher.Write(data)
	}

	return hex.EncodeToString(hasher.Sum(nil))[:12]
}

// Version returns the current cache version stamp
func (c *ResultCache) Version() string {
	return c.version
}

// KeyForFile generates a cache key from a file's content hash
func KeyForFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}

	return "file_" + hex.EncodeToString(hash.Sum(nil))[:16], nil
}

// Get retrieves a cached result for the given key
func (c *ResultCache) Get(key string) (*Entry, bool) {
	sub := filepath.Join(c.dir, key)

	info, err := os.Stat(sub)
	if err != nil || !info.IsDir() {
		return nil, false
	}

	// Version mismatch or missing stamp invalidates the entry
	versionData, err := os.ReadFile(filepath.Join(sub, ".version"))
	if err != nil || strings.TrimSpace(string(versionData)) != c.version {
		return nil, false
	}

	midiPath := filepath.Join(sub, "output.mid")
	if !fileExists(midiPath) {
		return nil, false
	}

	entry := &Entry{
		MIDIPath: midiPath,
		CacheKey: key,
		CachedAt: info.ModTime(),
	}
	if notesPath := filepath.Join(sub, "notes.json"); fileExists(notesPath) {
		entry.NotesPath = notesPath
	}
	return entry, true
}

// Put stores a transcription result in the cache
func (c *ResultCache) Put(key, midiPath, notesPath string, meta *Meta) (*Entry, error) {
	sub := filepath.Join(c.dir, key)
	if err := os.MkdirAll(sub, 0755); err != nil {
		return nil, fmt.Errorf("create cache subdir: %w", err)
	}

	entry := &Entry{CacheKey: key, CachedAt: time.Now()}

	dst := filepath.Join(sub, "output.mid")
	if err := copyFile(midiPath, dst); err != nil {
		return nil, fmt.Errorf("cache midi: %w", err)
	}
	entry.MIDIPath = dst

	if notesPath != "" && fileExists(notesPath) {
		dst := filepath.Join(sub, "notes.json")
		if err := copyFile(notesPath, dst); err != nil {
			return nil, fmt.Errorf("cache notes: %w", err)
		}
		entry.NotesPath = dst
	}

	if meta != nil {
		meta.CreatedAt = entry.CachedAt
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal meta: %w", err)
		}
		if err := os.WriteFile(filepath.Join(sub, "meta.json"), data, 0644); err != nil {
			return nil, fmt.Errorf("write meta: %w", err)
		}
	}

	if err := os.WriteFile(filepath.Join(sub, ".version"), []byte(c.version), 0644); err != nil {
		return nil, fmt.Errorf("write cache version: %w", err)
	}

	return entry, nil
}

// GetMeta reads stored metadata for a key, if present
func (c *ResultCache) GetMeta(key string) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, key, "meta.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse meta: %w", err)
	}
	return &meta, nil
}

// Clear removes all cached results
func (c *ResultCache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the total size of cached results in bytes and entry count
func (c *ResultCache) Size() (int64, int, error) {
	var totalSize int64
	var count int

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		count++

		files, _ := os.ReadDir(filepath.Join(c.dir, entry.Name()))
		for _, f := range files {
			info, err := f.Info()
			if err == nil {
				totalSize += info.Size()
			}
		}
	}

	return totalSize, count, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0644)
}
