package quotes

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kcjewelers/quotebuilder/internal/pricing"
)

// StorageError reports a quote save/load failure. The caller surfaces it as
// a retryable message; version files are written atomically so a failed save
// leaves no partial state behind.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("quote storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// StoredQuote is one immutable version: the input, the breakdown snapshotted
// at save time, and the image files copied under the quote directory.
type StoredQuote struct {
	ID        string            `json:"id"`
	Version   int               `json:"version"`
	SavedAt   time.Time         `json:"saved_at"`
	Input     pricing.QuoteInput `json:"input"`
	Breakdown pricing.Breakdown `json:"breakdown"`
	Images    []string          `json:"images"`
}

// VersionInfo summarizes one saved version of a quote.
type VersionInfo struct {
	Version    int
	SavedAt    time.Time
	GrandTotal float64
}

// ListEntry summarizes the latest version of a quote for the browse page.
type ListEntry struct {
	ID           string
	Version      int
	SavedAt      time.Time
	CustomerName string
	JobDesc      string
	Metal        string
	GrandTotal   float64
}

var (
	idPattern      = regexp.MustCompile(`^(\d{4})-(\d{4})$`)
	versionPattern = regexp.MustCompile(`^quote_v(\d+)\.json$`)
)

// Repo stores quotes under Root as <year>/<id>/quote_v<N>.json plus an
// images/ directory per quote. Single writer assumed; concurrent writers to
// the same directory are out of scope.
type Repo struct {
	Root string
}

func NewRepo(root string) *Repo {
	return &Repo{Root: root}
}

// Dir returns the directory a quote lives in.
func (r *Repo) Dir(id string) (string, error) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return "", &StorageError{Op: "resolve " + id, Err: fmt.Errorf("malformed quote id")}
	}
	return filepath.Join(r.Root, m[1], id), nil
}

// NextID returns the next sequential identifier for the year, formatted
// YYYY-####. Identifiers are never reused: the counter only moves forward.
func (r *Repo) NextID(year int) (string, error) {
	yearDir := filepath.Join(r.Root, strconv.Itoa(year))
	entries, err := os.ReadDir(yearDir)
	if err != nil && !os.IsNotExist(err) {
		return "", &StorageError{Op: "scan year " + strconv.Itoa(year), Err: err}
	}

	max := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := idPattern.FindStringSubmatch(entry.Name())
		if m == nil || m[1] != strconv.Itoa(year) {
			continue
		}
		seq, err := strconv.Atoi(m[2])
		if err == nil && seq > max {
			max = seq
		}
	}

	return fmt.Sprintf("%d-%04d", year, max+1), nil
}

// Save appends a new version of the quote. It never overwrites an existing
// version file, copies any newly attached images into the quote's images
// directory, and preserves images copied by earlier versions.
func (r *Repo) Save(id string, input pricing.QuoteInput, breakdown pricing.Breakdown, newImages []string) (int, error) {
	dir, err := r.Dir(id)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		return 0, &StorageError{Op: "create quote directory", Err: err}
	}

	latest, err := r.maxVersion(dir)
	if err != nil {
		return 0, err
	}

	var images []string
	if latest > 0 {
		prior, err := r.Load(id, latest)
		if err != nil {
			return 0, err
		}
		images = prior.Images
	}

	for _, src := range newImages {
		name := uuid.New().String() + filepath.Ext(src)
		if err := copyFile(src, filepath.Join(dir, "images", name)); err != nil {
			return 0, &StorageError{Op: "copy image " + filepath.Base(src), Err: err}
		}
		images = append(images, filepath.Join("images", name))
	}

	version := latest + 1
	doc := StoredQuote{
		ID:        id,
		Version:   version,
		SavedAt:   time.Now().UTC(),
		Input:     input,
		Breakdown: breakdown,
		Images:    images,
	}
	doc.Input.Images = images

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, &StorageError{Op: "encode " + id, Err: err}
	}

	target := filepath.Join(dir, versionFileName(version))
	if _, err := os.Stat(target); err == nil {
		return 0, &StorageError{Op: "write " + target, Err: fmt.Errorf("version %d already exists", version)}
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return 0, &StorageError{Op: "write " + target, Err: err}
	}
	if err := os.Rename(tmp, target); err != nil {
		return 0, &StorageError{Op: "write " + target, Err: err}
	}

	return version, nil
}

// Load reads one version of a quote. Version 0 (or below) means latest.
func (r *Repo) Load(id string, version int) (StoredQuote, error) {
	dir, err := r.Dir(id)
	if err != nil {
		return StoredQuote{}, err
	}

	if version <= 0 {
		version, err = r.maxVersion(dir)
		if err != nil {
			return StoredQuote{}, err
		}
		if version == 0 {
			return StoredQuote{}, &StorageError{Op: "load " + id, Err: fmt.Errorf("quote not found")}
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, versionFileName(version)))
	if err != nil {
		return StoredQuote{}, &StorageError{Op: fmt.Sprintf("load %s v%d", id, version), Err: err}
	}

	var doc StoredQuote
	if err := json.Unmarshal(data, &doc); err != nil {
		return StoredQuote{}, &StorageError{Op: fmt.Sprintf("decode %s v%d", id, version), Err: err}
	}

	return doc, nil
}

// ListVersions returns the saved versions of a quote in ascending order.
func (r *Repo) ListVersions(id string) ([]VersionInfo, error) {
	dir, err := r.Dir(id)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &StorageError{Op: "list versions of " + id, Err: err}
	}

	var versions []VersionInfo
	for _, entry := range entries {
		m := versionPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		doc, err := r.Load(id, v)
		if err != nil {
			return nil, err
		}
		versions = append(versions, VersionInfo{
			Version:    doc.Version,
			SavedAt:    doc.SavedAt,
			GrandTotal: doc.Breakdown.GrandTotal,
		})
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
	return versions, nil
}

// List returns the latest version of every stored quote, newest save first.
func (r *Repo) List() ([]ListEntry, error) {
	years, err := os.ReadDir(r.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Op: "scan quotes", Err: err}
	}

	var list []ListEntry
	for _, year := range years {
		if !year.IsDir() {
			continue
		}
		ids, err := os.ReadDir(filepath.Join(r.Root, year.Name()))
		if err != nil {
			return nil, &StorageError{Op: "scan year " + year.Name(), Err: err}
		}
		for _, entry := range ids {
			if !entry.IsDir() || !idPattern.MatchString(entry.Name()) {
				continue
			}
			latest, err := r.maxVersion(filepath.Join(r.Root, year.Name(), entry.Name()))
			if err != nil {
				return nil, err
			}
			if latest == 0 {
				// A failed save can leave a directory with no version
				// files; it holds no quote to list.
				continue
			}
			doc, err := r.Load(entry.Name(), latest)
			if err != nil {
				return nil, err
			}
			list = append(list, ListEntry{
				ID:           doc.ID,
				Version:      doc.Version,
				SavedAt:      doc.SavedAt,
				CustomerName: doc.Input.CustomerName,
				JobDesc:      doc.Input.JobDesc,
				Metal:        doc.Breakdown.Metal,
				GrandTotal:   doc.Breakdown.GrandTotal,
			})
		}
	}

	sort.Slice(list, func(i, j int) bool { return list[i].SavedAt.After(list[j].SavedAt) })
	return list, nil
}

func (r *Repo) maxVersion(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, &StorageError{Op: "scan " + dir, Err: err}
	}

	max := 0
	for _, entry := range entries {
		m := versionPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if v, err := strconv.Atoi(m[1]); err == nil && v > max {
			max = v
		}
	}
	return max, nil
}

func versionFileName(version int) string {
	return fmt.Sprintf("quote_v%d.json", version)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
