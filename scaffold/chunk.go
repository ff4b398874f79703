// Package scaffold implements the on-disk chunked binary container (§6): a FourCC-tagged
// chunk sequence, an in-memory scaffold root built by a pointer-fixup pass over it, and a
// seekable large-blocks handle for bulk vertex/index data.
package scaffold

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Carmen-Shannon/skingeo-core/common"
)

// FourCC is a 4-byte chunk type tag (e.g. "Mode", "Geom", "LBlk").
type FourCC [4]byte

func NewFourCC(s string) FourCC {
	var f FourCC
	copy(f[:], s)
	return f
}

func (f FourCC) String() string { return string(bytes.TrimRight(f[:], "\x00")) }

// chunkHeader is the 16-byte on-disk prefix of every chunk: tag, version, body length.
type chunkHeader struct {
	Tag     FourCC
	Version uint32
	Length  uint64
}

const chunkHeaderSize = 4 + 4 + 8

// WriteChunk appends one chunk (header + body) to w.
func WriteChunk(w io.Writer, tag FourCC, version uint32, body []byte) error {
	hdr := chunkHeader{Tag: tag, Version: version, Length: uint64(len(body))}
	if err := binary.Write(w, binary.LittleEndian, hdr.Tag); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, hdr.Version); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, hdr.Length); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// Entry is one chunk's directory record: its tag, version, and absolute byte range within
// the container.
type Entry struct {
	Tag     FourCC
	Version uint32
	Offset  int64
	Length  int64
}

// Container is a parsed chunk directory over a seekable, random-access byte source. Opening
// it only scans headers; chunk bodies are read lazily via ReadChunk/Open.
type Container struct {
	ra      io.ReaderAt
	entries []Entry
}

// OpenContainer scans size bytes of ra as a sequence of chunks, building a directory
// without reading any chunk body.
func OpenContainer(ra io.ReaderAt, size int64) (*Container, error) {
	c := &Container{ra: ra}

	var offset int64
	for offset < size {
		if offset+chunkHeaderSize > size {
			return nil, common.NewError(common.KindFormat, "scaffold: truncated chunk header at offset %d", offset)
		}
		var hdrBuf [chunkHeaderSize]byte
		if _, err := ra.ReadAt(hdrBuf[:], offset); err != nil {
			return nil, fmt.Errorf("scaffold: reading chunk header at %d: %w", offset, err)
		}

		var hdr chunkHeader
		copy(hdr.Tag[:], hdrBuf[0:4])
		hdr.Version = binary.LittleEndian.Uint32(hdrBuf[4:8])
		hdr.Length = binary.LittleEndian.Uint64(hdrBuf[8:16])

		bodyOffset := offset + chunkHeaderSize
		if bodyOffset+int64(hdr.Length) > size {
			return nil, common.NewError(common.KindFormat, "scaffold: chunk %s body overruns container", hdr.Tag)
		}

		c.entries = append(c.entries, Entry{
			Tag:     hdr.Tag,
			Version: hdr.Version,
			Offset:  bodyOffset,
			Length:  int64(hdr.Length),
		})
		offset = bodyOffset + int64(hdr.Length)
	}

	return c, nil
}

// Find returns the directory entry for tag, if present.
func (c *Container) Find(tag FourCC) (Entry, bool) {
	for _, e := range c.entries {
		if e.Tag == tag {
			return e, true
		}
	}
	return Entry{}, false
}

// ReadChunk loads tag's body fully into memory, rejecting a version mismatch. Intended for
// the fully in-memory block-serialised objects (§6), not the large-blocks region.
func (c *Container) ReadChunk(tag FourCC, expectedVersion uint32) ([]byte, error) {
	e, ok := c.Find(tag)
	if !ok {
		return nil, common.NewError(common.KindMissingAttribute, "scaffold: no chunk tagged %s", tag)
	}
	if e.Version != expectedVersion {
		return nil, common.NewError(common.KindFormat,
			"scaffold: chunk %s version %d != expected %d", tag, e.Version, expectedVersion)
	}
	buf := make([]byte, e.Length)
	if _, err := c.ra.ReadAt(buf, e.Offset); err != nil {
		return nil, fmt.Errorf("scaffold: reading chunk %s: %w", tag, err)
	}
	return buf, nil
}

// Open returns a seekable handle onto tag's body, sharing the container's underlying
// reader rather than copying it -- the mechanism large-blocks vertex/index loads use.
func (c *Container) Open(tag FourCC) (*io.SectionReader, error) {
	e, ok := c.Find(tag)
	if !ok {
		return nil, common.NewError(common.KindMissingAttribute, "scaffold: no chunk tagged %s", tag)
	}
	return io.NewSectionReader(c.ra, e.Offset, e.Length), nil
}

// OpenAt returns a seekable handle onto an arbitrary absolute byte range of the container,
// used after pointer fixup has resolved a geo entry's large-block-relative offset to an
// absolute one.
func (c *Container) OpenAt(offset, length int64) *io.SectionReader {
	return io.NewSectionReader(c.ra, offset, length)
}
