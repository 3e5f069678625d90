package mediastore

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FileSink stores media below a root directory, one file per entry at
// <root>/<RelativePath>/<DisplayName><ext>.
type FileSink struct {
	root string
	now  func() time.Time
}

// NewFileSink creates the root directory if needed and returns a sink writing into it.
func NewFileSink(root string) (*FileSink, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", root)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", abs)
	}
	return &FileSink{root: abs, now: time.Now}, nil
}

// Root returns the absolute root directory.
func (s *FileSink) Root() string {
	return s.root
}

// Path returns the absolute file path a request is written to.
func (s *FileSink) Path(req Request) (string, error) {
	key, err := req.Key()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Save writes r to the file named by req. An existing file with the same name
// is replaced.
func (s *FileSink) Save(ctx context.Context, req Request, r io.Reader) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	p, err := s.Path(req)
	if err != nil {
		return Entry{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Entry{}, errors.Wrapf(err, "create collection %s", req.RelativePath)
	}

	// Write to a temporary name first so readers never observe partial files.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".pending-*")
	if err != nil {
		return Entry{}, errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return Entry{}, errors.Wrapf(err, "write %s", p)
	}
	if err := tmp.Close(); err != nil {
		return Entry{}, errors.Wrapf(err, "close %s", p)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return Entry{}, errors.Wrapf(err, "commit %s", p)
	}

	uri := fileURI(p)
	return Entry{
		ID:           entryID(uri),
		DisplayName:  req.DisplayName,
		MIMEType:     req.MIMEType,
		RelativePath: cleanRelative(req.RelativePath),
		URI:          uri,
		Size:         n,
		CreatedAt:    s.now().UTC(),
	}, nil
}

// Open reads back an entry written by this sink.
func (s *FileSink) Open(ctx context.Context, entry Entry) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(Request{DisplayName: entry.DisplayName, MIMEType: entry.MIMEType, RelativePath: entry.RelativePath})
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "%s", p)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", p)
	}
	return f, nil
}

// List reads all media files in a collection, sorted by display name. Since
// display names are timestamps this is capture order. Files with unknown
// extensions and hidden files are skipped.
//
// Arguments:
// - relativePath: The collection to list, e.g. ImageCollection.
//
// Returns:
// - []Entry: The entries found; empty when the collection does not exist.
// - error: Error if the directory cannot be read.
func (s *FileSink) List(relativePath string) ([]Entry, error) {
	rel := cleanRelative(relativePath)
	dir := filepath.Join(s.root, filepath.FromSlash(rel))

	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}

	var entries []Entry
	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}
		mime, err := MIMEForName(file.Name())
		if err != nil {
			continue
		}
		info, err := file.Info()
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", file.Name())
		}
		p := filepath.Join(dir, file.Name())
		uri := fileURI(p)
		entries = append(entries, Entry{
			ID:           entryID(uri),
			DisplayName:  strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())),
			MIMEType:     mime,
			RelativePath: rel,
			URI:          uri,
			Size:         info.Size(),
			CreatedAt:    info.ModTime().UTC(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DisplayName < entries[j].DisplayName
	})
	return entries, nil
}

func fileURI(p string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}
