package mig

import (
	"archive/zip"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mb0/xelf/cor"
	"github.com/mb0/xelf/prx"
)

// Meta records the provenance of a dataset: the schema it was written under and
// optionally the repository the schema came from. Order preserves the model stream
// order, which directory listings would otherwise lose.
type Meta struct {
	Schema string   `json:"schema"`
	Vers   int64    `json:"vers,omitempty"`
	Hash   string   `json:"hash,omitempty"`
	URL    string   `json:"url,omitempty"`
	Branch string   `json:"branch,omitempty"`
	Commit string   `json:"commit,omitempty"`
	Order  []string `json:"order,omitempty"`
}

// WriteTo writes the meta record to w and returns the written bytes or an error.
func (m Meta) WriteTo(w io.Writer) (int64, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	n, err := w.Write(data)
	return int64(n), err
}

// Dataset consists of a meta record, a version manifest and one or more data streams
// of model objects.
type Dataset struct {
	Meta
	Manifest
	Streams []Stream
	Closer  io.Closer
}

// Close calls the closer, if configured, and should always be called.
func (d *Dataset) Close() error {
	if d.Closer != nil {
		return d.Closer.Close()
	}
	return nil
}

// Stream returns the stream for a model key or nil.
func (d *Dataset) Stream(key string) Stream {
	for _, s := range d.Streams {
		if s.Name() == key {
			return s
		}
	}
	return nil
}

// Keys returns the stream model keys in dataset order.
func (d *Dataset) Keys() []string {
	res := make([]string, 0, len(d.Streams))
	for _, s := range d.Streams {
		res = append(res, s.Name())
	}
	return res
}

// ReadDataset returns a dataset with the meta record, manifest and data streams found
// at path or an error.
//
// Path must either point to a directory or a zip file containing individual files for
// the meta record, the manifest and the data streams. The meta file must be named
// 'meta' and the manifest 'manifest'. Data streams use the model key with an extension
// for the format, that is either '.json' or '.xelf' with an optional '.gz' for gzipped
// files. The returned data streams are first read when iterated.
func ReadDataset(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cor.Errorf("read data at path %q: %v", path, err)
	}
	if strings.HasSuffix(path, ".zip") {
		return zipData(f, path)
	}
	return dirData(f, path)
}

// WriteDataset writes a dataset to path or returns an error. If the path ends in '.zip'
// a zip file is written, otherwise the dataset is written as individual gzipped files
// to the directory at path.
//
// The dataset is first written to a temporary sibling and moved into place when
// complete, so a failed write never leaves partial or stale output at path.
func WriteDataset(path string, d *Dataset) error {
	tmp := path + ".tmp"
	os.RemoveAll(tmp)
	var err error
	if strings.HasSuffix(path, ".zip") {
		err = writeFile(tmp, func(f io.Writer) error {
			w := zip.NewWriter(f)
			defer w.Close()
			return WriteZip(w, d)
		})
	} else {
		err = writeDir(tmp, d)
	}
	if err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err = os.RemoveAll(path); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeDir(path string, d *Dataset) error {
	err := writeFileGz(filepath.Join(path, "meta.json.gz"), func(w io.Writer) error {
		_, err := d.Meta.WriteTo(w)
		return err
	})
	if err != nil {
		return err
	}
	err = writeFileGz(filepath.Join(path, "manifest.json.gz"), func(w io.Writer) error {
		_, err := d.Manifest.WriteTo(w)
		return err
	})
	if err != nil {
		return err
	}
	for _, s := range d.Streams {
		it, err := s.Iter()
		if err != nil {
			return err
		}
		name := fmt.Sprintf("%s.json.gz", s.Name())
		err = writeFileGz(filepath.Join(path, name), func(w io.Writer) error {
			return WriteIter(it, w)
		})
		it.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadZip returns a dataset read from the given zip reader as described in ReadDataset
// or an error. It is the caller's responsibility to close a zip read closer or any
// underlying reader.
func ReadZip(r *zip.Reader) (_ *Dataset, err error) {
	var d Dataset
	for _, f := range r.File {
		s := ZipStream{NewFileStream(f.Name, f.Name), f}
		switch s.Model {
		case "meta":
			d.Meta, err = readMetaStream(&s)
		case "manifest":
			d.Manifest, err = readManifestStream(&s)
		default:
			d.Streams = append(d.Streams, &s)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	d.sortStreams()
	return &d, nil
}

// WriteZip writes a dataset to the given zip file or returns an error.
// It is the caller's responsibility to close the zip writer.
func WriteZip(z *zip.Writer, d *Dataset) error {
	w, err := z.Create("meta.json")
	if err != nil {
		return err
	}
	_, err = d.Meta.WriteTo(w)
	if err != nil {
		return err
	}
	w, err = z.Create("manifest.json")
	if err != nil {
		return err
	}
	_, err = d.Manifest.WriteTo(w)
	if err != nil {
		return err
	}
	for _, s := range d.Streams {
		it, err := s.Iter()
		if err != nil {
			return err
		}
		w, err = z.Create(fmt.Sprintf("%s.json", s.Name()))
		if err != nil {
			it.Close()
			return err
		}
		err = WriteIter(it, w)
		it.Close()
		if err != nil {
			return err
		}
	}
	return z.Flush()
}

func dirData(f *os.File, path string) (*Dataset, error) {
	defer f.Close()
	fis, err := f.Readdir(0)
	if err != nil {
		return nil, cor.Errorf("read data dir at path %q: %v", path, err)
	}
	var d Dataset
	for _, fi := range fis {
		s := NewFileStream(fi.Name(), filepath.Join(path, fi.Name()))
		switch s.Model {
		case "meta":
			d.Meta, err = readMetaStream(&s)
		case "manifest":
			d.Manifest, err = readManifestStream(&s)
		default:
			d.Streams = append(d.Streams, &s)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	d.sortStreams()
	return &d, nil
}

// sortStreams restores the stream order recorded in the meta record. Streams without
// an order entry keep their found order at the end.
func (d *Dataset) sortStreams() {
	if len(d.Meta.Order) == 0 {
		return
	}
	pos := make(map[string]int, len(d.Meta.Order))
	for i, k := range d.Meta.Order {
		pos[k] = i + 1
	}
	sort.SliceStable(d.Streams, func(i, j int) bool {
		pi, pj := pos[d.Streams[i].Name()], pos[d.Streams[j].Name()]
		if pi == 0 {
			return false
		}
		if pj == 0 {
			return true
		}
		return pi < pj
	})
}

func zipData(f *os.File, path string) (*Dataset, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, cor.Errorf("stat zip data at path %q: %v", path, err)
	}
	r, err := zip.NewReader(f, fi.Size())
	if err != nil {
		return nil, cor.Errorf("read zip data at path %q: %v", path, err)
	}
	d, err := ReadZip(r)
	if err != nil {
		f.Close()
		return nil, err
	}
	d.Closer = f
	return d, nil
}

func readManifestStream(s Stream) (Manifest, error) {
	it, err := s.Iter()
	if err != nil {
		return nil, err
	}
	defer it.Close()
	mf := make(Manifest, 0, 48)
	for {
		l, err := it.Scan()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		var v Version
		err = prx.AssignTo(l, &v)
		if err != nil {
			return nil, err
		}
		mf = append(mf, v)
	}
	return mf.Sort(), nil
}

func readMetaStream(s Stream) (m Meta, err error) {
	it, err := s.Iter()
	if err != nil {
		return m, err
	}
	defer it.Close()
	l, err := it.Scan()
	if err != nil {
		if err == io.EOF {
			return m, nil
		}
		return m, err
	}
	err = prx.AssignTo(l, &m)
	return m, err
}

// writeFileGz writes one complete gzip member per file. The gzip writer must be
// closed before the file handle, otherwise the member lacks its trailer.
func writeFileGz(path string, wf func(io.Writer) error) error {
	return writeFile(path, func(w io.Writer) error {
		gz := gzip.NewWriter(w)
		if err := wf(gz); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	})
}

func writeFile(path string, wf func(io.Writer) error) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = wf(f)
	f.Close()
	return err
}
