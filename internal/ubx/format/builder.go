package format

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Builder assembles a UBX snapshot from section payloads. Sections are
// added in any order; Build lays them out contiguously, computes per-
// section and whole-file CRC32, and returns the final byte slice. Used by
// the compiler's serializer stage (spec.md §4.2 stage 7).
type Builder struct {
	buildID  uint32
	sections []builderSection
}

type builderSection struct {
	id          SectionID
	payload     []byte
	compression uint16
	rawLen      uint32 // uncompressed length, 0 if not compressed
}

// NewBuilder starts a new snapshot builder stamped with buildID (typically
// a compiler-run identifier used for provenance/debugging).
func NewBuilder(buildID uint32) *Builder {
	return &Builder{buildID: buildID}
}

// AddSection stores payload uncompressed under id.
func (b *Builder) AddSection(id SectionID, payload []byte) {
	b.sections = append(b.sections, builderSection{id: id, payload: payload})
}

// AddCompressedSection zstd-compresses payload before storing it under id.
// Sections below a useful compression threshold (small tables, hot-path
// hash directories) should use AddSection instead; zstd is reserved for
// bulk, rarely-touched data like STRPOOL and pattern literals.
func (b *Builder) AddCompressedSection(id SectionID, payload []byte) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	defer enc.Close()
	compressed := enc.EncodeAll(payload, nil)
	b.sections = append(b.sections, builderSection{
		id:          id,
		payload:     compressed,
		compression: CompressionZstd,
		rawLen:      uint32(len(payload)),
	})
	return nil
}

// AddLZ4Section lz4-compresses payload before storing it under id. Reserved
// for bulkier posting-list sections (TOKEN_POSTINGS, cosmetic/procedural/
// scriptlet tables) where lz4's faster decode matters more than zstd's
// better ratio on the hot lookup path.
func (b *Builder) AddLZ4Section(id SectionID, payload []byte) error {
	bound := lz4.CompressBlockBound(len(payload))
	compressed := make([]byte, bound)
	var c lz4.Compressor
	n, err := c.CompressBlock(payload, compressed)
	if err != nil {
		return err
	}
	if n == 0 && len(payload) > 0 {
		// Incompressible input: lz4 signals this by writing zero bytes.
		// Fall back to storing it uncompressed rather than losing data.
		b.AddSection(id, payload)
		return nil
	}
	b.sections = append(b.sections, builderSection{
		id:          id,
		payload:     compressed[:n],
		compression: CompressionLZ4,
		rawLen:      uint32(len(payload)),
	})
	return nil
}

// Build serializes the header, section directory, and section bodies into
// one contiguous byte slice. withCRC32 controls whether a whole-file
// CRC32 is computed and the corresponding header flag set.
func (b *Builder) Build(withCRC32 bool) []byte {
	dirBytes := len(b.sections) * SectionDirEntryBytes
	bodyOffset := HeaderBytes + dirBytes

	offsets := make([]int, len(b.sections))
	total := bodyOffset
	for i, s := range b.sections {
		offsets[i] = total
		total += len(s.payload)
	}

	out := make([]byte, total)
	copy(out[0:4], Magic[:])
	binary.LittleEndian.PutUint16(out[4:6], 1) // version 1
	flags := uint16(0)
	if withCRC32 {
		flags |= FlagHasCRC32
	}
	binary.LittleEndian.PutUint16(out[6:8], flags)
	binary.LittleEndian.PutUint32(out[8:12], HeaderBytes)
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(b.sections)))
	binary.LittleEndian.PutUint32(out[16:20], HeaderBytes)
	binary.LittleEndian.PutUint32(out[20:24], uint32(dirBytes))
	binary.LittleEndian.PutUint32(out[24:28], b.buildID)
	// out[28:32] (CRC32) filled in below, after the body is written.

	for i, s := range b.sections {
		copy(out[offsets[i]:], s.payload)

		entryOff := HeaderBytes + i*SectionDirEntryBytes
		e := out[entryOff : entryOff+SectionDirEntryBytes]
		binary.LittleEndian.PutUint16(e[0:2], uint16(s.id))
		binary.LittleEndian.PutUint16(e[2:4], s.compression)
		binary.LittleEndian.PutUint32(e[4:8], uint32(offsets[i]))
		binary.LittleEndian.PutUint32(e[8:12], uint32(len(s.payload)))
		binary.LittleEndian.PutUint32(e[12:16], s.rawLen)
		binary.LittleEndian.PutUint32(e[16:20], crc32.ChecksumIEEE(s.payload))
	}

	if withCRC32 {
		sum := crc32.ChecksumIEEE(out)
		binary.LittleEndian.PutUint32(out[28:32], sum)
	}
	return out
}
