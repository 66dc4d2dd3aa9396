package loader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Default file extensions of the two unit representations.
const (
	DefaultCompactExt = ".unit.gz"
	DefaultPlainExt   = ".unit"
)

// Locator supplies unit source given a unit name.
type Locator interface {
	Locate(name string) (*Source, error)
}

// ---------------------------------------------------------------------------
// DirLocator
// ---------------------------------------------------------------------------

// DirLocator searches a list of directories for unit files. In each
// directory the compact representation is preferred; the plain one is the
// fallback.
type DirLocator struct {
	Dirs       []string
	CompactExt string
	PlainExt   string
}

// NewDirLocator returns a DirLocator with the default extensions.
func NewDirLocator(dirs ...string) *DirLocator {
	return &DirLocator{
		Dirs:       dirs,
		CompactExt: DefaultCompactExt,
		PlainExt:   DefaultPlainExt,
	}
}

// Locate implements Locator.
func (l *DirLocator) Locate(name string) (*Source, error) {
	compactExt := l.CompactExt
	if compactExt == "" {
		compactExt = DefaultCompactExt
	}
	plainExt := l.PlainExt
	if plainExt == "" {
		plainExt = DefaultPlainExt
	}

	for _, dir := range l.Dirs {
		path := filepath.Join(dir, name+compactExt)
		data, err := os.ReadFile(path)
		if err == nil {
			text, err := Decompress(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			return &Source{Name: name, Path: path, Data: text, Form: FormCompact}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		path = filepath.Join(dir, name+plainExt)
		data, err = os.ReadFile(path)
		if err == nil {
			return &Source{Name: name, Path: path, Data: data, Form: FormPlain}, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Decompress decodes a compact unit: a gzip stream, optionally preceded by
// its decompressed size as a 4-byte little-endian integer.
func Decompress(data []byte) ([]byte, error) {
	var size uint32
	hasSize := false
	if !isGzip(data) && len(data) > 4 && isGzip(data[4:]) {
		size = binary.LittleEndian.Uint32(data[:4])
		hasSize = true
		data = data[4:]
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	defer zr.Close()

	text, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if hasSize && uint32(len(text)) != size {
		return nil, fmt.Errorf("decompress: size prefix says %d bytes, got %d", size, len(text))
	}
	return text, nil
}

// Compress produces the size-prefixed compact form of a unit text.
func Compress(text []byte) ([]byte, error) {
	var buf bytes.Buffer
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(text)))
	buf.Write(prefix[:])

	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(text); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// ---------------------------------------------------------------------------
// MapLocator and Chain
// ---------------------------------------------------------------------------

// MapLocator serves plain unit texts from memory.
type MapLocator map[string]string

// Locate implements Locator.
func (m MapLocator) Locate(name string) (*Source, error) {
	text, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &Source{Name: name, Path: "mem:" + name, Data: []byte(text), Form: FormPlain}, nil
}

// Chain asks each locator in turn; the first one that finds the unit wins.
type Chain []Locator

// Locate implements Locator.
func (c Chain) Locate(name string) (*Source, error) {
	for _, l := range c {
		src, err := l.Locate(name)
		if err == nil {
			return src, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}
