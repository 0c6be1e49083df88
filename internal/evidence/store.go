package evidence

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Role string

const (
	RolePrimaryVisual   Role = "primary-visual"
	RoleSecondaryAudio  Role = "secondary-audio"
	RoleBenchmarkReport Role = "benchmark-report"
)

var (
	ErrMediaType = errors.New("disallowed media type")
	ErrTooLarge  = errors.New("payload too large")
)

// allowedMediaTypes is the intake allow-list: visual/audio machine
// evidence plus document types for benchmark reports.
var allowedMediaTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
	"audio/mpeg":      true,
	"audio/wav":       true,
	"audio/ogg":       true,
	"application/pdf": true,
	"text/plain":      true,
}

// StagedFile is one accepted upload, persisted to the staging dir for
// the lifetime of a single request.
type StagedFile struct {
	Role         Role
	Path         string
	OriginalName string
	MediaType    string
	Size         int64
}

// Set maps each role to at most one staged file.
type Set map[Role]StagedFile

// Store is the ephemeral holding area for uploaded artifacts. Everything
// staged through it is expected to be purged by the end of the request.
type Store struct {
	Dir      string
	MaxBytes int64
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "foundry-evidence")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Store{Dir: dir, MaxBytes: maxBytes}, nil
}

// Stage validates and persists one upload. The staged name carries a
// nanosecond prefix so concurrent requests never collide on the
// original filename.
func (s *Store) Stage(role Role, name, mediaType string, r io.Reader) (StagedFile, error) {
	base := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if !allowedMediaTypes[base] {
		return StagedFile{}, fmt.Errorf("%w: %s", ErrMediaType, mediaType)
	}

	staged := filepath.Join(s.Dir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), sanitizeName(name)))
	f, err := os.OpenFile(staged, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return StagedFile{}, fmt.Errorf("stage %s: %w", role, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.MaxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(staged)
		return StagedFile{}, fmt.Errorf("stage %s: %w", role, err)
	}
	if n > s.MaxBytes {
		_ = os.Remove(staged)
		return StagedFile{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, name, s.MaxBytes)
	}

	return StagedFile{
		Role:         role,
		Path:         staged,
		OriginalName: name,
		MediaType:    base,
		Size:         n,
	}, nil
}

func (s *Store) ReadAll(f StagedFile) ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Purge deletes every staged file in the set, best effort. A missing or
// already-deleted file is logged, never surfaced: purge must not be able
// to fail a request that already has an outcome.
func (s *Store) Purge(set Set) {
	for role, f := range set {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			log.Printf("purge %s (%s): %v", role, f.Path, err)
		}
	}
}

func sanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
