package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/pypackages/pkg/errors"
)

// EntryType classifies an archive member.
type EntryType int

const (
	TypeFile EntryType = iota
	TypeDir
	TypeSymlink
	TypeHardlink
	TypeOther // devices, fifos and anything else that is never extracted
)

// Entry is one archive member. Its content is readable through Open until
// the owning Reader advances.
type Entry struct {
	Path string // as stored, slash separated
	Type EntryType
	Size int64
	Mode fs.FileMode
	Link string // link target for TypeSymlink and TypeHardlink

	open func() (io.ReadCloser, error)
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Type == TypeDir }

// Open returns the entry's content.
func (e Entry) Open() (io.ReadCloser, error) {
	if e.open == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return e.open()
}

// Reader iterates over the members of an archive. Next returns io.EOF
// after the last entry. Rooted reports whether the members sit under a
// single top-level directory that Extract strips, as in an sdist.
type Reader interface {
	Next() (Entry, error)
	Rooted() bool
	Close() error
}

// Sdist marks r as a source distribution. Tarballs already are; zip files
// are read as wheels unless wrapped.
func Sdist(r Reader) Reader { return sdist{r} }

type sdist struct{ Reader }

func (sdist) Rooted() bool { return true }

// Format is a supported archive container.
type Format string

const (
	FormatTarGz Format = "tar.gz"
	FormatZip   Format = "zip"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zipMagic  = []byte("PK\x03\x04")
	zipEmpty  = []byte("PK\x05\x06")
)

// Detect sniffs the container format from the leading bytes.
func Detect(head []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return FormatTarGz, true
	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, zipEmpty):
		return FormatZip, true
	}
	return "", false
}

// Open opens the archive at path, choosing the decoder from its magic
// bytes rather than its name. Wheels are zip files; sdists are gzipped
// tarballs or zip files.
func Open(path string) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		f.Close()
		return nil, err
	}
	format, ok := Detect(head[:n])
	if !ok {
		f.Close()
		return nil, errors.New(errors.ErrCodeUnsupported, "%s is not a gzip or zip archive", path)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	var r Reader
	switch format {
	case FormatTarGz:
		r, err = newTarGz(f)
	default:
		var info fs.FileInfo
		if info, err = f.Stat(); err == nil {
			r, err = newZip(f, info.Size(), f)
		}
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// NewTarGz reads a gzip-compressed tarball from r.
func NewTarGz(r io.Reader) (Reader, error) { return newTarGz(nopCloser{r}) }

// NewZip reads a zip container of the given size from r.
func NewZip(r io.ReaderAt, size int64) (Reader, error) { return newZip(r, size, nil) }

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

type tarGz struct {
	src io.Closer
	gz  *gzip.Reader
	tr  *tar.Reader
}

func newTarGz(src io.ReadCloser) (*tarGz, error) {
	gz, err := gzip.NewReader(bufio.NewReader(src))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read gzip header")
	}
	return &tarGz{src: src, gz: gz, tr: tar.NewReader(gz)}, nil
}

func (t *tarGz) Next() (Entry, error) {
	h, err := t.tr.Next()
	for (err == nil || err == tar.ErrInsecurePath) && h.Typeflag == tar.TypeXGlobalHeader {
		h, err = t.tr.Next()
	}
	if err == tar.ErrInsecurePath {
		err = nil
	}
	if err != nil {
		if err == io.EOF {
			return Entry{}, io.EOF
		}
		return Entry{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "read tar entry")
	}
	e := Entry{Path: h.Name, Size: h.Size, Mode: h.FileInfo().Mode(), Link: h.Linkname}
	switch h.Typeflag {
	case tar.TypeReg, tar.TypeRegA, tar.TypeGNUSparse:
		e.Type = TypeFile
		e.open = func() (io.ReadCloser, error) { return io.NopCloser(t.tr), nil }
	case tar.TypeDir:
		e.Type = TypeDir
	case tar.TypeSymlink:
		e.Type = TypeSymlink
	case tar.TypeLink:
		e.Type = TypeHardlink
	default:
		e.Type = TypeOther
	}
	return e, nil
}

func (t *tarGz) Rooted() bool { return true }

func (t *tarGz) Close() error {
	gzErr := t.gz.Close()
	if err := t.src.Close(); err != nil {
		return err
	}
	return gzErr
}

type zipArchive struct {
	src   io.Closer
	files []*zip.File
	next  int
}

func newZip(r io.ReaderAt, size int64, src io.Closer) (*zipArchive, error) {
	// Member names are checked by Extract, so a reader returned alongside
	// an insecure-path error is still used.
	zr, err := zip.NewReader(r, size)
	if zr == nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read zip directory")
	}
	return &zipArchive{src: src, files: zr.File}, nil
}

func (z *zipArchive) Next() (Entry, error) {
	if z.next >= len(z.files) {
		return Entry{}, io.EOF
	}
	f := z.files[z.next]
	z.next++

	mode := f.Mode()
	e := Entry{Path: f.Name, Size: int64(f.UncompressedSize64), Mode: mode}
	switch {
	case mode.IsDir():
		e.Type = TypeDir
	case mode&fs.ModeSymlink != 0:
		e.Type = TypeSymlink
		target, err := readLink(f)
		if err != nil {
			return Entry{}, err
		}
		e.Link = target
	case mode.IsRegular():
		e.Type = TypeFile
		e.open = f.Open
	default:
		e.Type = TypeOther
	}
	return e, nil
}

func (z *zipArchive) Rooted() bool { return false }

func (z *zipArchive) Close() error {
	if z.src == nil {
		return nil
	}
	return z.src.Close()
}

// readLink reads a zip symlink target, which is stored as the member body.
func readLink(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read link %s", f.Name)
	}
	defer rc.Close()
	target, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read link %s", f.Name)
	}
	return string(target), nil
}
