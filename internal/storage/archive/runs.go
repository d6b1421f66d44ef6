package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/swingsim/internal/core"
)

const manifestName = "manifest.json"

// Artifact is one file produced by a run.
type Artifact struct {
	Name string
	Data []byte
}

// ManifestEntry describes a stored artifact.
type ManifestEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int    `json:"size"`
}

// Manifest indexes the artifacts of one run.
type Manifest struct {
	RunID     string          `json:"run_id"`
	Ticker    string          `json:"ticker"`
	CreatedAt time.Time       `json:"created_at"`
	Artifacts []ManifestEntry `json:"artifacts"`
}

// Runs lays run artifacts out as runs/<ticker>/<run id>/<name> on a Storage.
type Runs struct {
	store Storage
	now   func() time.Time
}

// NewRuns wraps store.
func NewRuns(store Storage) *Runs {
	return &Runs{store: store, now: time.Now}
}

// RunDir is the directory holding the artifacts of runID.
func RunDir(ticker, runID string) string {
	return path.Join("runs", safeSegment(ticker), safeSegment(runID))
}

// Save writes every artifact and then the manifest, so a manifest only
// exists for complete runs.
func (r *Runs) Save(ctx context.Context, ticker, runID string, artifacts []Artifact) (Manifest, error) {
	dir := RunDir(ticker, runID)
	m := Manifest{
		RunID:     runID,
		Ticker:    ticker,
		CreatedAt: r.now().UTC(),
	}

	for _, a := range artifacts {
		if a.Name == "" || a.Name == manifestName {
			return Manifest{}, fmt.Errorf("invalid artifact name %q", a.Name)
		}
		p := path.Join(dir, safeSegment(a.Name))
		if err := r.store.Write(ctx, p, a.Data); err != nil {
			return Manifest{}, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("writing %s: %w", p, err))
		}
		m.Artifacts = append(m.Artifacts, ManifestEntry{Name: a.Name, Path: p, Size: len(a.Data)})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	if err := r.store.Write(ctx, path.Join(dir, manifestName), data); err != nil {
		return Manifest{}, core.WrapError(core.ErrArchiveFailed, fmt.Errorf("writing manifest: %w", err))
	}
	return m, nil
}

// List returns the manifests of ticker's runs, newest first. An empty ticker
// lists every run.
func (r *Runs) List(ctx context.Context, ticker string) ([]Manifest, error) {
	prefix := "runs"
	if ticker != "" {
		prefix = path.Join(prefix, safeSegment(ticker))
	}
	paths, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var out []Manifest
	for _, p := range paths {
		if path.Base(p) != manifestName {
			continue
		}
		data, err := r.store.Read(ctx, p)
		if err != nil {
			return nil, err
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", p, err)
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Load reads one artifact of a run.
func (r *Runs) Load(ctx context.Context, ticker, runID, name string) ([]byte, error) {
	return r.store.Read(ctx, path.Join(RunDir(ticker, runID), safeSegment(name)))
}

// Delete removes every artifact of a run, manifest first.
func (r *Runs) Delete(ctx context.Context, ticker, runID string) error {
	dir := RunDir(ticker, runID)
	if err := r.store.Delete(ctx, path.Join(dir, manifestName)); err != nil {
		return err
	}
	paths, err := r.store.List(ctx, dir)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := r.store.Delete(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func safeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(strings.TrimSpace(s))
	if s == "" {
		return "_"
	}
	return s
}
