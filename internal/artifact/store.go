package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes the two artifact families subject to retention.
type Kind string

const (
	KindAggregate Kind = "aggregate"
	KindDelta     Kind = "delta"
)

const (
	artifactExt     = ".json"
	nameTimeLayout  = "20060102_150405"
	defaultFileMode = 0o755
)

// ErrNoArtifact is returned when a kind has no artifacts on disk yet.
var ErrNoArtifact = errors.New("no artifact available")

// Info describes one persisted artifact.
type Info struct {
	Kind       Kind      `json:"kind"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	CapturedAt time.Time `json:"captured_at"`
}

// Store persists artifacts under a single directory with timestamp-derived
// names. Writes stage to a temporary file and publish atomically via rename,
// so readers never observe a partially-written artifact.
type Store struct {
	dir string
	now func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock injects the time source used for artifact names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, opts ...Option) *Store {
	store := &Store{dir: filepath.Clean(dir), now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Write persists payload as a new artifact of the given kind and returns its
// location. Names derive from the current instant; a same-second collision
// gets a numeric suffix so names stay unique and monotonic.
func (s *Store) Write(kind Kind, payload any) (Info, error) {
	if err := os.MkdirAll(s.dir, defaultFileMode); err != nil {
		return Info{}, fmt.Errorf("ensure artifact directory: %w", err)
	}

	stamp := s.now()
	finalPath, name := s.nextName(kind, stamp)

	tempFile, err := os.CreateTemp(s.dir, fmt.Sprintf("%s-*.tmp", kind))
	if err != nil {
		return Info{}, fmt.Errorf("create temp artifact file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(tempFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return Info{}, fmt.Errorf("encode artifact: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return Info{}, fmt.Errorf("sync artifact file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return Info{}, fmt.Errorf("close artifact file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		return Info{}, fmt.Errorf("promote artifact file: %w", err)
	}
	cleanup = false

	return Info{Kind: kind, Name: name, Path: finalPath, CapturedAt: stamp.Truncate(time.Second)}, nil
}

// List returns all artifacts of a kind, newest first.
func (s *Store) List(kind Kind) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}

	prefix := string(kind) + "_"
	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, artifactExt) {
			continue
		}
		capturedAt, ok := parseNameTime(name, prefix)
		if !ok {
			continue
		}
		infos = append(infos, Info{
			Kind:       kind,
			Name:       name,
			Path:       filepath.Join(s.dir, name),
			CapturedAt: capturedAt,
		})
	}

	// Newest first. Same-second collisions order by their numeric suffix,
	// which lexicographic comparison would get wrong past _9.
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CapturedAt.Equal(infos[j].CapturedAt) {
			return infos[i].CapturedAt.After(infos[j].CapturedAt)
		}
		return parseNameSeq(infos[i].Name, prefix) > parseNameSeq(infos[j].Name, prefix)
	})
	return infos, nil
}

// Latest returns the most recent artifact of a kind.
func (s *Store) Latest(kind Kind) (Info, error) {
	infos, err := s.List(kind)
	if err != nil {
		return Info{}, err
	}
	if len(infos) == 0 {
		return Info{}, ErrNoArtifact
	}
	return infos[0], nil
}

// Read decodes an artifact's payload into out.
func (s *Store) Read(info Info, out any) error {
	data, err := os.ReadFile(info.Path)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", info.Name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode artifact %s: %w", info.Name, err)
	}
	return nil
}

// ReadLatest decodes the most recent artifact of a kind into out.
func (s *Store) ReadLatest(kind Kind, out any) (Info, error) {
	info, err := s.Latest(kind)
	if err != nil {
		return Info{}, err
	}
	if err := s.Read(info, out); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Prune removes all but the keep most recent artifacts of a kind. Individual
// deletion failures are logged and skipped; pruning never fails a cycle.
// Returns the number of artifacts removed.
func (s *Store) Prune(kind Kind, keep int) int {
	if keep < 0 {
		keep = 0
	}
	infos, err := s.List(kind)
	if err != nil {
		log.Printf("[artifact] prune %s: %v", kind, err)
		return 0
	}

	removed := 0
	for _, info := range infos[min(keep, len(infos)):] {
		if err := os.Remove(info.Path); err != nil {
			log.Printf("[artifact] failed to remove %s: %v", info.Name, err)
			continue
		}
		removed++
	}
	return removed
}

func (s *Store) nextName(kind Kind, stamp time.Time) (string, string) {
	base := fmt.Sprintf("%s_%s", kind, stamp.Format(nameTimeLayout))
	name := base + artifactExt
	path := filepath.Join(s.dir, name)
	for n := 2; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, name
		}
		name = fmt.Sprintf("%s_%d%s", base, n, artifactExt)
		path = filepath.Join(s.dir, name)
	}
}

// parseNameSeq extracts the collision suffix from an artifact name; the
// first write of a second carries no suffix and counts as 1.
func parseNameSeq(name, prefix string) int {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, prefix), artifactExt)
	if len(trimmed) <= len(nameTimeLayout)+1 {
		return 1
	}
	seq, err := strconv.Atoi(trimmed[len(nameTimeLayout)+1:])
	if err != nil {
		return 1
	}
	return seq
}

func parseNameTime(name, prefix string) (time.Time, bool) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, prefix), artifactExt)
	if len(trimmed) > len(nameTimeLayout) {
		trimmed = trimmed[:len(nameTimeLayout)]
	}
	ts, err := time.Parse(nameTimeLayout, trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
