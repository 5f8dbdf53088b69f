package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/ftsync/blobstore"
	"github.com/hupe1980/ftsync/internal/hash"
)

const (
	ManifestPrefix  = "MANIFEST-"
	ManifestExt     = ".json"
	CurrentFileName = "CURRENT"
	SegmentPrefix   = "SEG-"
	SegmentExt      = ".seg"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
)

// Manifest describes the committed state of an index.
type Manifest struct {
	Version       int             `json:"version"`
	ID            uint64          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	Schema        json.RawMessage `json:"schema"`
	NextSegmentID uint64          `json:"next_segment_id"`
	Segments      []SegmentInfo   `json:"segments"`
	DocCount      uint64          `json:"doc_count"`
}

// SegmentInfo describes a single segment.
type SegmentInfo struct {
	ID   uint64 `json:"id"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	Ops  int    `json:"ops"`
	// Base marks a segment that starts by clearing the index, so earlier
	// segments are irrelevant.
	Base bool `json:"base,omitempty"`
}

// New creates a new empty manifest for a schema.
func New(schema json.RawMessage) *Manifest {
	return &Manifest{
		Version:       CurrentVersion,
		CreatedAt:     time.Now().UTC(),
		Schema:        schema,
		NextSegmentID: 1, // Start segment IDs at 1
	}
}

// Clone returns a deep copy of m.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Schema = append(json.RawMessage(nil), m.Schema...)
	c.Segments = append([]SegmentInfo(nil), m.Segments...)
	return &c
}

// AllocateSegment reserves the next segment ID and returns its blob name.
func (m *Manifest) AllocateSegment() (uint64, string) {
	id := m.NextSegmentID
	m.NextSegmentID++
	return id, SegmentFileName(id)
}

// FileName returns the blob name of manifest version id.
func FileName(id uint64) string {
	return fmt.Sprintf("%s%06d%s", ManifestPrefix, id, ManifestExt)
}

// SegmentFileName returns the blob name of segment id.
func SegmentFileName(id uint64) string {
	return fmt.Sprintf("%s%06d%s", SegmentPrefix, id, SegmentExt)
}

// ParseFileName extracts the version from a manifest blob name.
func ParseFileName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, ManifestPrefix) || !strings.HasSuffix(name, ManifestExt) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(name, ManifestPrefix), ManifestExt), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// envelope carries a manifest with its checksum.
type envelope struct {
	Checksum uint32          `json:"crc32c"`
	Manifest json.RawMessage `json:"manifest"`
}

// Store manages the manifest files and atomic updates.
type Store struct {
	store blobstore.BlobStore
	mu    sync.Mutex
}

// NewStore creates a new manifest store.
func NewStore(store blobstore.BlobStore) *Store {
	return &Store{store: store}
}

// Load loads the current manifest.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	return s.LoadVersion(ctx, 0)
}

// LoadVersion loads a specific version ID. 0 means latest.
func (s *Store) LoadVersion(ctx context.Context, versionID uint64) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var name string
	if versionID == 0 {
		content, err := blobstore.ReadAll(ctx, s.store, CurrentFileName)
		if err != nil {
			// blobstore.ErrNotFound is os.ErrNotExist.
			if errors.Is(err, os.ErrNotExist) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		name = strings.TrimSpace(string(content))
		if _, ok := ParseFileName(name); !ok {
			return nil, fmt.Errorf("%w: CURRENT names %q", ErrCorrupt, name)
		}
	} else {
		name = FileName(versionID)
	}

	data, err := blobstore.ReadAll(ctx, s.store, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", name, err)
	}
	return decode(name, data)
}

func decode(name string, data []byte) (*Manifest, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	if err := hash.Check(env.Manifest, env.Checksum); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	m := &Manifest{}
	if err := json.Unmarshal(env.Manifest, m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %s has version %d", ErrIncompatibleVersion, name, m.Version)
	}
	return m, nil
}

// Save atomically saves m as the next version and points CURRENT at it.
// On success m.ID is the new version.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *m
	next.Version = CurrentVersion
	next.ID = m.ID + 1
	next.CreatedAt = time.Now().UTC()

	body, err := json.Marshal(&next)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{Checksum: hash.CRC32C(body), Manifest: body})
	if err != nil {
		return err
	}

	name := FileName(next.ID)
	if err := s.store.Put(ctx, name, data); err != nil {
		return err
	}

	// S3: strong consistency on overwrites. Local: atomic rename in Put.
	if err := s.store.Put(ctx, CurrentFileName, []byte(name)); err != nil {
		_ = s.store.Delete(ctx, name)
		return err
	}

	*m = next
	return nil
}

// ListVersions returns the versions of all manifest blobs, ascending.
func (s *Store) ListVersions(ctx context.Context) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.store.List(ctx, ManifestPrefix)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, n := range names {
		if id, ok := ParseFileName(n); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// DeleteVersion deletes the manifest file for the given version.
func (s *Store) DeleteVersion(ctx context.Context, versionID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx, FileName(versionID))
}
