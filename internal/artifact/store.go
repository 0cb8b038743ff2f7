package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/countmodel"
	"github.com/greenbier/propedge/internal/features"
	"github.com/greenbier/propedge/internal/tables"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

var (
	ErrLocked           = errors.New("artifact store is locked by another writer")
	ErrNotFound         = errors.New("artifact not found")
	ErrFeatureOrder     = errors.New("feature order mismatch")
	ErrCoefficientCount = errors.New("coefficient count mismatch")
)

const lockFile = ".lock"

// Store lays artifacts out as <root>/<sport>_<stat>/<version>/
type Store struct {
	root string
}

// NewStore creates a store under <dataRoot>/artifacts
func NewStore(dataRoot string) *Store {
	return &Store{root: filepath.Join(dataRoot, "artifacts")}
}

func (s *Store) marketDir(market string) string {
	return filepath.Join(s.root, market)
}

// Save writes the artifact into a temp directory and renames it into place, then moves LATEST.
// Versions are never overwritten; a same-second retrain gets a numeric suffix.
func (s *Store) Save(a *Artifact) (string, error) {
	market := a.Meta.Market
	dir := s.marketDir(market)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.Persistence("save artifact", err)
	}

	unlock, err := s.lock(market)
	if err != nil {
		return "", apperr.Persistence("save artifact", err)
	}
	defer unlock()

	version := a.Meta.TrainedAt.UTC().Format(VersionLayout)
	for i := 2; exists(filepath.Join(dir, version)); i++ {
		version = fmt.Sprintf("%s_%d", a.Meta.TrainedAt.UTC().Format(VersionLayout), i)
	}
	a.Meta.Version = version

	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString())
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return "", apperr.Persistence("save artifact", err)
	}
	if err := writeVersion(tmp, a); err != nil {
		os.RemoveAll(tmp)
		return "", apperr.Persistence("save artifact", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, version)); err != nil {
		os.RemoveAll(tmp)
		return "", apperr.Persistence("save artifact", fmt.Errorf("failed to publish %s: %w", version, err))
	}

	err = tables.WriteFileAtomic(filepath.Join(dir, LatestFile), func(w io.Writer) error {
		_, err := io.WriteString(w, version+"\n")
		return err
	})
	if err != nil {
		return "", apperr.Persistence("save artifact", err)
	}

	log.Info().
		Str("market", market).
		Str("version", version).
		Bool("degraded", a.Meta.Degraded).
		Msg("Artifact published")

	return version, nil
}

func writeVersion(dir string, a *Artifact) error {
	if err := writeJSON(filepath.Join(dir, MetaFile), a.Meta); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, LookupFile), a.Lookup); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, CoefficientsFile))
	if err != nil {
		return err
	}
	if err := encodeCoefficients(f, a.Model.Beta); err != nil {
		f.Close()
		return fmt.Errorf("failed to write coefficients: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

// lock takes a single-writer lock for the market; readers never lock.
// The lock is an flock on .lock, so the kernel drops it when the holder exits for any reason.
func (s *Store) lock(market string) (func(), error) {
	path := filepath.Join(s.marketDir(market), lockFile)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	if err := f.Truncate(0); err == nil {
		fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	}
	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}

// Resolve maps "latest" (or empty) to the LATEST pointer, otherwise returns version unchanged
func (s *Store) Resolve(market, version string) (string, error) {
	if version != "" && version != Latest {
		return version, nil
	}
	data, err := os.ReadFile(filepath.Join(s.marketDir(market), LatestFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", apperr.Validation("load artifact", fmt.Errorf("%w: no %s pointer for %s", ErrNotFound, LatestFile, market))
	}
	if err != nil {
		return "", apperr.Persistence("load artifact", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Load reads a version and verifies its feature order matches the caller's.
// Any mismatch or corruption is a validation error.
func (s *Store) Load(market, version string, featureOrder []string) (*Artifact, error) {
	version, err := s.Resolve(market, version)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.marketDir(market), version)
	if !exists(dir) {
		return nil, apperr.Validation("load artifact", fmt.Errorf("%w: %s/%s", ErrNotFound, market, version))
	}

	var meta Meta
	if err := readJSON(filepath.Join(dir, MetaFile), &meta); err != nil {
		return nil, err
	}
	if !equalOrder(meta.FeatureOrder, featureOrder) {
		return nil, apperr.Validation("load artifact", fmt.Errorf("%w: artifact %v, caller %v", ErrFeatureOrder, meta.FeatureOrder, featureOrder))
	}

	data, err := os.ReadFile(filepath.Join(dir, CoefficientsFile))
	if err != nil {
		return nil, apperr.Validation("load artifact", err)
	}
	beta, err := decodeCoefficients(data)
	if err != nil {
		return nil, apperr.Validation("load artifact", err)
	}
	if len(beta) != len(featureOrder)+1 || len(beta) != meta.Coefficients {
		return nil, apperr.Validation("load artifact", fmt.Errorf("%w: %d coefficients for %d features", ErrCoefficientCount, len(beta), len(featureOrder)))
	}

	var lookup features.Lookup
	if err := readJSON(filepath.Join(dir, LookupFile), &lookup); err != nil {
		return nil, err
	}

	model := &countmodel.Model{
		FeatureOrder:   meta.FeatureOrder,
		Beta:           beta,
		Alpha:          meta.AlphaGlobal,
		Bias:           meta.Bias,
		Family:         countmodel.Family(meta.Family),
		Degraded:       meta.Degraded,
		DegradedReason: meta.DegradedReason,
		Converged:      meta.Converged,
		Iterations:     meta.Iterations,
		LogLik:         meta.LogLik,
		Rows:           meta.TrainRows,
	}

	log.Debug().Str("market", market).Str("version", version).Msg("Artifact loaded")

	return &Artifact{Meta: meta, Model: model, Lookup: lookup}, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperr.Validation("load artifact", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Validation("load artifact", fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err))
	}
	return nil
}

// Versions lists published versions, oldest first
func (s *Store) Versions(market string) ([]string, error) {
	entries, err := os.ReadDir(s.marketDir(market))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("list artifacts", err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}

func equalOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
