// Package store implements the durable, content-addressed storage layer for
// scheme records, factsheets, and derived text chunks. It is the only
// component that touches the data directory; every other component reads and
// writes through it.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/npbot/npbot/internal/fund"
)

const (
	schemesDir    = "schemes"
	factsheetsDir = "factsheets"
	chunksDir     = "chunks"
	metadataFile  = "metadata.json"
)

// ChunkedStore stores one JSON file per scheme, factsheet, and chunk, plus a
// metadata index. Writes are atomic (write-then-rename) and serialized per
// scheme code; the metadata index is updated together with every record write.
type ChunkedStore struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex // guards metadata read-modify-write
	keysMu sync.Mutex
	keys   map[string]*sync.Mutex
}

// New creates the data directory layout and returns a store rooted at dir.
func New(dir string, logger *slog.Logger) (*ChunkedStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, sub := range []string{schemesDir, factsheetsDir, chunksDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return &ChunkedStore{
		dir:    dir,
		logger: logger,
		keys:   make(map[string]*sync.Mutex),
	}, nil
}

// keyLock returns the per-scheme write lock, creating it on first use.
func (s *ChunkedStore) keyLock(schemeCode string) *sync.Mutex {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()
	lock, ok := s.keys[schemeCode]
	if !ok {
		lock = &sync.Mutex{}
		s.keys[schemeCode] = lock
	}
	return lock
}

// PutScheme validates the record's source attribution and writes it, keyed by
// scheme code, overwriting any prior version. Returns ErrIntegrity if any
// populated field lacks an allowlisted field_sources entry.
func (s *ChunkedStore) PutScheme(rec *fund.SchemeRecord) error {
	if rec.SchemeCode == "" {
		return fmt.Errorf("%w: missing scheme_code", ErrIntegrity)
	}
	for _, field := range rec.AttributedFields() {
		src, ok := rec.FieldSources[field]
		if !ok || src == "" {
			return fmt.Errorf("%w: field %q has no source attribution", ErrIntegrity, field)
		}
		if !fund.ValidSourceURL(src) {
			return fmt.Errorf("%w: field %q cites non-official source %q", ErrIntegrity, field, src)
		}
	}

	lock := s.keyLock(rec.SchemeCode)
	lock.Lock()
	defer lock.Unlock()

	// Read prior version first so the metadata validation tally can be
	// adjusted for the overwritten status.
	prior, err := s.GetScheme(rec.SchemeCode)
	if err != nil {
		s.logger.Warn("ignoring unreadable prior record", "scheme", rec.SchemeCode, "error", err)
		prior = nil
	}

	path := filepath.Join(s.dir, schemesDir, rec.SchemeCode+".json")
	if err := writeJSON(path, rec); err != nil {
		return fmt.Errorf("write scheme %s: %w", rec.SchemeCode, err)
	}

	return s.updateMetadata(func(md *fund.StorageMetadata) {
		upsertSummary(md, fund.SchemeSummary{
			SchemeCode: rec.SchemeCode,
			SchemeName: rec.SchemeName,
			Category:   rec.Category,
			SourceURL:  rec.SchemeWebpageURL,
		})
		if md.ValidationCounts == nil {
			md.ValidationCounts = make(map[fund.ValidationStatus]int)
		}
		if prior != nil && md.ValidationCounts[prior.ValidationStatus] > 0 {
			md.ValidationCounts[prior.ValidationStatus]--
		}
		md.ValidationCounts[rec.ValidationStatus]++
	})
}

// PutFactsheet writes a factsheet keyed by its scheme code. The factsheet's
// own source URL must be allowlisted.
func (s *ChunkedStore) PutFactsheet(f *fund.FactsheetRecord) error {
	if f.SchemeCode == "" {
		return fmt.Errorf("%w: missing scheme_code", ErrIntegrity)
	}
	if !fund.ValidSourceURL(f.SourceURL) {
		return fmt.Errorf("%w: factsheet cites non-official source %q", ErrIntegrity, f.SourceURL)
	}

	lock := s.keyLock(f.SchemeCode)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(s.dir, factsheetsDir, f.SchemeCode+".json")
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	if err := writeJSON(path, f); err != nil {
		return fmt.Errorf("write factsheet %s: %w", f.SchemeCode, err)
	}

	return s.updateMetadata(func(md *fund.StorageMetadata) {
		if isNew {
			md.TotalFactsheets++
		}
	})
}

// ChunkAndStore splits text into overlapping windows, derives a content-hash
// ID per window, and persists each as a TextChunk. Re-running with identical
// input is idempotent: same IDs, no duplicate entries.
func (s *ChunkedStore) ChunkAndStore(text, sourceURL string, chunkType fund.ChunkType, schemeCode string) ([]fund.TextChunk, error) {
	if !fund.ValidSourceURL(sourceURL) {
		return nil, fmt.Errorf("%w: chunk cites non-official source %q", ErrIntegrity, sourceURL)
	}

	lock := s.keyLock(schemeCode)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	var chunks []fund.TextChunk
	created := 0
	for _, window := range splitText(text) {
		chunk := fund.TextChunk{
			ChunkID:    chunkID(schemeCode, chunkType, sourceURL, window),
			SchemeCode: schemeCode,
			ChunkType:  chunkType,
			Content:    window,
			SourceURL:  sourceURL,
			CreatedAt:  now,
		}
		path := filepath.Join(s.dir, chunksDir, chunk.ChunkID+".json")
		_, statErr := os.Stat(path)
		isNew := os.IsNotExist(statErr)
		if isNew {
			if err := writeJSON(path, &chunk); err != nil {
				return nil, fmt.Errorf("write chunk %s: %w", chunk.ChunkID, err)
			}
			created++
		}
		chunks = append(chunks, chunk)
	}

	if created > 0 {
		err := s.updateMetadata(func(md *fund.StorageMetadata) {
			md.TotalChunks += created
		})
		if err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

// PruneChunks deletes stored chunks of the given scheme and type whose IDs
// are not in keep, and returns the removed chunk IDs so the caller can evict
// the matching index points. Run after a re-chunk so superseded windows do
// not linger.
func (s *ChunkedStore) PruneChunks(schemeCode string, chunkType fund.ChunkType, keep []fund.TextChunk) ([]string, error) {
	keepIDs := make(map[string]bool, len(keep))
	for _, chunk := range keep {
		keepIDs[chunk.ChunkID] = true
	}

	lock := s.keyLock(schemeCode)
	lock.Lock()
	defer lock.Unlock()

	all, err := s.GetAllChunks()
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, chunk := range all {
		if chunk.SchemeCode != schemeCode || chunk.ChunkType != chunkType || keepIDs[chunk.ChunkID] {
			continue
		}
		path := filepath.Join(s.dir, chunksDir, chunk.ChunkID+".json")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove chunk %s: %w", chunk.ChunkID, err)
		}
		removed = append(removed, chunk.ChunkID)
	}
	if len(removed) > 0 {
		err := s.updateMetadata(func(md *fund.StorageMetadata) {
			md.TotalChunks -= len(removed)
			if md.TotalChunks < 0 {
				md.TotalChunks = 0
			}
		})
		if err != nil {
			return removed, err
		}
		s.logger.Debug("pruned superseded chunks", "scheme", schemeCode, "type", chunkType, "count", len(removed))
	}
	return removed, nil
}

// GetScheme returns the stored record for code, or nil if absent.
func (s *ChunkedStore) GetScheme(code string) (*fund.SchemeRecord, error) {
	var rec fund.SchemeRecord
	ok, err := readJSON(filepath.Join(s.dir, schemesDir, code+".json"), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// GetAllSchemes returns every stored scheme record. Unreadable files are
// skipped with a warning rather than failing the whole listing.
func (s *ChunkedStore) GetAllSchemes() ([]*fund.SchemeRecord, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, schemesDir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var schemes []*fund.SchemeRecord
	for _, path := range paths {
		code := strings.TrimSuffix(filepath.Base(path), ".json")
		rec, err := s.GetScheme(code)
		if err != nil {
			s.logger.Warn("skipping unreadable scheme", "scheme", code, "error", err)
			continue
		}
		if rec != nil {
			schemes = append(schemes, rec)
		}
	}
	return schemes, nil
}

// GetFactsheet returns the stored factsheet for code, or nil if absent.
func (s *ChunkedStore) GetFactsheet(code string) (*fund.FactsheetRecord, error) {
	var f fund.FactsheetRecord
	ok, err := readJSON(filepath.Join(s.dir, factsheetsDir, code+".json"), &f)
	if err != nil || !ok {
		return nil, err
	}
	return &f, nil
}

// GetAllChunks returns every stored text chunk, used to rebuild the search
// index from durable storage.
func (s *ChunkedStore) GetAllChunks() ([]fund.TextChunk, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, chunksDir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var chunks []fund.TextChunk
	for _, path := range paths {
		var chunk fund.TextChunk
		ok, err := readJSON(path, &chunk)
		if err != nil {
			s.logger.Warn("skipping unreadable chunk", "path", path, "error", err)
			continue
		}
		if ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// SetValidationStatus updates one record's validation status through the
// normal write path. A missing record is a no-op.
func (s *ChunkedStore) SetValidationStatus(code string, status fund.ValidationStatus) error {
	rec, err := s.GetScheme(code)
	if err != nil || rec == nil {
		return err
	}
	rec.ValidationStatus = status
	return s.PutScheme(rec)
}

// MarkRefreshed records a completed refresh run in the metadata index. A full
// refresh also counts as a fast one since it re-observes NAV.
func (s *ChunkedStore) MarkRefreshed(full bool, at time.Time) error {
	at = at.UTC()
	return s.updateMetadata(func(md *fund.StorageMetadata) {
		md.LastFastRefresh = &at
		if full {
			md.LastFullRefresh = &at
		}
	})
}

// Metadata returns the current metadata index.
func (s *ChunkedStore) Metadata() (*fund.StorageMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMetadataLocked()
}

// updateMetadata applies fn to the metadata index and persists it atomically.
func (s *ChunkedStore) updateMetadata(fn func(*fund.StorageMetadata)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, err := s.loadMetadataLocked()
	if err != nil {
		return err
	}
	fn(md)
	md.TotalSchemes = len(md.Schemes)
	if err := writeJSON(filepath.Join(s.dir, metadataFile), md); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (s *ChunkedStore) loadMetadataLocked() (*fund.StorageMetadata, error) {
	var md fund.StorageMetadata
	ok, err := readJSON(filepath.Join(s.dir, metadataFile), &md)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &fund.StorageMetadata{}, nil
	}
	return &md, nil
}

func upsertSummary(md *fund.StorageMetadata, summary fund.SchemeSummary) {
	for i, existing := range md.Schemes {
		if existing.SchemeCode == summary.SchemeCode {
			md.Schemes[i] = summary
			return
		}
	}
	md.Schemes = append(md.Schemes, summary)
}

// writeJSON writes v to path atomically: a temp file in the same directory is
// renamed into place so a crash never leaves a torn record visible.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readJSON decodes path into v. Returns (false, nil) when the file is absent.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, filepath.Base(path), err)
	}
	return true, nil
}
