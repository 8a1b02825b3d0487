package mig

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/mb0/xelf/bfr"
	"github.com/mb0/xelf/lex"
	"github.com/mb0/xelf/lit"
)

// Stream represents a possibly large sequence of model data objects.
//
// This abstraction allows us to choose an appropriate implementation for any situation, without
// being forced to load all the data into memory at once.
type Stream interface {
	Name() string // model key of the stream objects
	Iter() (Iter, error)
}

// Iter scans literals from a stream and returns io.EOF after the last one.
type Iter interface {
	Scan() (lit.Lit, error)
	Close() error
}

// FileStream is a file based stream implementation.
type FileStream struct {
	Model  string
	Format string
	Gzip   bool
	Path   string
}

func NewFileStream(name, path string) FileStream {
	var ext string
	gz := strings.HasSuffix(name, ".gz")
	if gz {
		name = name[:len(name)-3]
	}
	idx := strings.LastIndexByte(name, '/')
	if idx >= 0 {
		name = name[idx+1:]
	}
	idx = strings.LastIndexByte(name, '.')
	if idx > 0 {
		name, ext = name[:idx], name[idx+1:]
	}
	return FileStream{name, ext, gz, path}
}

func (s *FileStream) Name() string { return s.Model }
func (s *FileStream) Iter() (Iter, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	return newFileIter(s, f)
}

// ZipStream is a zip file based stream implementation.
type ZipStream struct {
	FileStream
	*zip.File
}

func (s *ZipStream) Iter() (Iter, error) {
	f, err := s.File.Open()
	if err != nil {
		return nil, err
	}
	return newFileIter(&s.FileStream, f)
}

type fileIter struct {
	s   *FileStream
	f   io.ReadCloser
	gz  *gzip.Reader
	lex *lex.Lexer
}

func newFileIter(s *FileStream, f io.ReadCloser) (_ *fileIter, err error) {
	it := &fileIter{s: s, f: f}
	if s.Gzip {
		it.gz, err = gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		it.lex = lex.New(it.gz)
	} else {
		it.lex = lex.New(f)
	}
	return it, nil
}

func (it *fileIter) Close() error {
	if it.gz != nil {
		it.gz.Close()
	}
	return it.f.Close()
}
func (it *fileIter) Scan() (lit.Lit, error) {
	tr, err := it.lex.Tree()
	if err != nil {
		if tr == nil && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return lit.Parse(tr)
}

// LitStream is an in-memory stream implementation.
type LitStream struct {
	Model string
	Data  []lit.Lit
}

func NewLitStream(name string, data []lit.Lit) *LitStream {
	return &LitStream{Model: name, Data: data}
}

func (s *LitStream) Name() string { return s.Model }
func (s *LitStream) Iter() (Iter, error) {
	return &litIter{data: s.Data}, nil
}

type litIter struct {
	data []lit.Lit
	idx  int
}

func (it *litIter) Close() error { return nil }
func (it *litIter) Scan() (lit.Lit, error) {
	if it.idx >= len(it.data) {
		return nil, io.EOF
	}
	l := it.data[it.idx]
	it.idx++
	return l, nil
}

// WriteIter writes all literals of the iterator to w, one per line.
func WriteIter(it Iter, w io.Writer) error {
	var buf bytes.Buffer
	b := bfr.Ctx{B: &buf, JSON: true}
	for {
		l, err := it.Scan()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		err = l.WriteBfr(&b)
		if err != nil {
			return err
		}
		b.WriteByte('\n')
		_, err = buf.WriteTo(w)
		if err != nil {
			return err
		}
	}
	return nil
}
