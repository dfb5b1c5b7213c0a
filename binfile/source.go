package binfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/kshedden/chromhmm/hmmlib"
	"google.golang.org/api/iterator"
)

// Source is a collection of named binarized files.
type Source interface {

	// List returns the names of the files in the collection.
	List(ctx context.Context) ([]string, error)

	// Open returns a reader for the named file.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Close releases any resources held by the source.
	Close() error
}

// DirSource is a directory on the local file system.
type DirSource struct {
	Dir string
}

// List returns the names of the regular files in the directory.
func (ds *DirSource) List(ctx context.Context) ([]string, error) {

	entries, err := os.ReadDir(ds.Dir)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}

	return names, nil
}

// Open opens the named file in the directory.
func (ds *DirSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	fid, err := os.Open(filepath.Join(ds.Dir, name))
	if err != nil {
		return nil, pfx.Err(err)
	}
	return fid, nil
}

// Close does nothing.
func (ds *DirSource) Close() error {
	return nil
}

// GCSSource is the set of objects in a Google Cloud Storage bucket whose
// names begin with a prefix.  Object names are reported relative to the
// prefix.
type GCSSource struct {
	Client *storage.Client
	Bucket string
	Prefix string
}

// List returns the names of the objects directly under the prefix.
func (gs *GCSSource) List(ctx context.Context) ([]string, error) {

	it := gs.Client.Bucket(gs.Bucket).Objects(ctx, &storage.Query{Prefix: gs.Prefix, Delimiter: "/"})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("listing gs://%s/%s: %w", gs.Bucket, gs.Prefix, err))
		}
		if attrs.Name == "" {
			// A synthetic directory entry
			continue
		}
		names = append(names, strings.TrimPrefix(attrs.Name, gs.Prefix))
	}

	return names, nil
}

// Open returns a reader for the named object.
func (gs *GCSSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := gs.Client.Bucket(gs.Bucket).Object(gs.Prefix + name).NewReader(ctx)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("gs://%s/%s%s: %w", gs.Bucket, gs.Prefix, name, err))
	}
	return rc, nil
}

// Close closes the storage client.
func (gs *GCSSource) Close() error {
	return gs.Client.Close()
}

// NewSource returns a GCSSource for locations of the form
// gs://bucket/prefix and a DirSource otherwise.
func NewSource(ctx context.Context, loc string) (Source, error) {

	if !strings.HasPrefix(loc, "gs://") {
		return &DirSource{Dir: loc}, nil
	}

	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(loc, "gs://"), "/")
	if bucket == "" {
		return nil, fmt.Errorf("no bucket in %s", loc)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return &GCSSource{Client: client, Bucket: bucket, Prefix: prefix}, nil
}

// Select returns the binarized file names to read from names, sorted.  If
// include is not empty only those names are returned, and every one of them
// must be present.
func Select(names, include []string) ([]string, error) {

	var sel []string
	if len(include) == 0 {
		for _, name := range names {
			if IsBinarized(name) {
				sel = append(sel, name)
			}
		}
	} else {
		have := make(map[string]bool, len(names))
		for _, name := range names {
			have[name] = true
		}
		for _, name := range include {
			if !have[name] {
				return nil, fmt.Errorf("%s is in the include list but was not found", name)
			}
			sel = append(sel, name)
		}
	}

	sort.Strings(sel)

	return sel, nil
}

// ReadAll reads the selected binarized files from src in sorted file name
// order.  If fn is not nil it is called after each file is read.
func ReadAll(ctx context.Context, src Source, include []string, fn func(name string)) ([]*hmmlib.RawSequence, error) {

	names, err := src.List(ctx)
	if err != nil {
		return nil, err
	}

	sel, err := Select(names, include)
	if err != nil {
		return nil, err
	}
	if len(sel) == 0 {
		return nil, fmt.Errorf("no binarized files found")
	}

	var raw []*hmmlib.RawSequence
	for _, name := range sel {
		rs, err := readOne(ctx, src, name)
		if err != nil {
			return nil, err
		}
		raw = append(raw, rs)
		if fn != nil {
			fn(name)
		}
	}

	return raw, nil
}

func readOne(ctx context.Context, src Source, name string) (*hmmlib.RawSequence, error) {

	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, done, err := openReader(rc, name)
	if err != nil {
		return nil, err
	}
	defer done()

	return Read(r, path.Base(name))
}
