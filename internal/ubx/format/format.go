// Package format implements the UBX binary snapshot container: the fixed
// header, the section directory, and the zero-copy loader that validates
// and maps a snapshot's bytes into typed section views. See spec.md §4.1
// "Snapshot Format & Loader".
package format

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Magic is the 4-byte UBX snapshot signature.
var Magic = [4]byte{'U', 'B', 'X', '1'}

// HeaderBytes is the fixed header size in bytes.
const HeaderBytes = 64

// SectionDirEntryBytes is the fixed size of one section-directory entry.
const SectionDirEntryBytes = 24

// Flag bits in the header's flags field.
const (
	FlagHasCRC32 uint16 = 1 << 0
)

// Per-section compression scheme, stored in a section-directory entry's flags.
const (
	CompressionNone uint16 = 0
	CompressionZstd uint16 = 1
	CompressionLZ4  uint16 = 2
)

const compressionMask uint16 = 0x3

// SectionID identifies one section of a UBX snapshot. Unknown IDs
// encountered while loading a newer snapshot are ignored (forward
// compatibility, spec.md §4.1).
type SectionID uint16

const (
	SectionSTRPOOL SectionID = iota + 1
	SectionPSLSets
	SectionDomainSets
	SectionTokenDict
	SectionTokenPostings
	SectionPatternPool
	SectionRules
	SectionDomainConstraintPool
	SectionRedirectResources
	SectionRemoveparamSpecs
	SectionCSPSpecs
	SectionHeaderSpecs
	SectionResponseheaderRules
	SectionCosmeticRules
	SectionProceduralRules
	SectionScriptletRules

	// SectionFallbackBucket is an engine-specific extension beyond the
	// spec's core stable section IDs: it holds the posting list of rules
	// too unselective to index by token, hostname, or domain set (spec.md
	// §4.2 stage 5 "fallback bucket consulted on every request"). Loaders
	// that don't recognize it simply ignore it (forward compatibility).
	SectionFallbackBucket SectionID = 1000
)

// Header is the decoded fixed 64-byte UBX header.
type Header struct {
	Version         uint16
	Flags           uint16
	HeaderBytes     uint32
	SectionCount    uint32
	SectionDirOff   uint32
	SectionDirBytes uint32
	BuildID         uint32
	CRC32           uint32
}

// HasCRC32 reports whether the snapshot carries a whole-file CRC32.
func (h Header) HasCRC32() bool { return h.Flags&FlagHasCRC32 != 0 }

// SectionDirEntry describes one section's placement and compression.
type SectionDirEntry struct {
	ID                 SectionID
	Flags              uint16
	Offset             uint32
	Length             uint32
	UncompressedLength uint32 // 0 if not compressed
	CRC32              uint32
}

// Compression returns the compression scheme recorded in the entry's flags.
func (e SectionDirEntry) Compression() uint16 { return e.Flags & compressionMask }

// Snapshot is a validated, loaded UBX snapshot: the original bytes plus
// typed directory metadata. Section accessors decompress on first use and
// return byte slices ready for a typed view (rule/pattern/hash-table
// decoders built on top of this package).
type Snapshot struct {
	raw      []byte
	Header   Header
	sections map[SectionID]SectionDirEntry
	decoded  map[SectionID][]byte
}

// Error is a structural validation failure returned by Load.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "ubx format: " + e.Reason }

// Load validates and maps raw UBX snapshot bytes. It never retains raw
// beyond what's needed to decompress sections lazily; it does not copy
// uncompressed sections.
func Load(raw []byte) (*Snapshot, error) {
	if len(raw) < HeaderBytes {
		return nil, &Error{Reason: fmt.Sprintf("truncated header: %d bytes", len(raw))}
	}
	if string(raw[0:4]) != string(Magic[:]) {
		return nil, &Error{Reason: "bad magic"}
	}

	h := Header{
		Version:         binary.LittleEndian.Uint16(raw[4:6]),
		Flags:           binary.LittleEndian.Uint16(raw[6:8]),
		HeaderBytes:     binary.LittleEndian.Uint32(raw[8:12]),
		SectionCount:    binary.LittleEndian.Uint32(raw[12:16]),
		SectionDirOff:   binary.LittleEndian.Uint32(raw[16:20]),
		SectionDirBytes: binary.LittleEndian.Uint32(raw[20:24]),
		BuildID:         binary.LittleEndian.Uint32(raw[24:28]),
		CRC32:           binary.LittleEndian.Uint32(raw[28:32]),
	}
	if h.HeaderBytes != HeaderBytes {
		return nil, &Error{Reason: fmt.Sprintf("unexpected header-bytes %d", h.HeaderBytes)}
	}

	dirEnd := uint64(h.SectionDirOff) + uint64(h.SectionDirBytes)
	if dirEnd > uint64(len(raw)) {
		return nil, &Error{Reason: "section directory out of bounds"}
	}
	if uint64(h.SectionDirBytes) != uint64(h.SectionCount)*SectionDirEntryBytes {
		return nil, &Error{Reason: "section directory size mismatch"}
	}

	if h.HasCRC32() {
		sum := crc32.NewIEEE()
		zeroed := make([]byte, len(raw))
		copy(zeroed, raw)
		binary.LittleEndian.PutUint32(zeroed[28:32], 0)
		sum.Write(zeroed)
		if sum.Sum32() != h.CRC32 {
			return nil, &Error{Reason: "snapshot CRC32 mismatch"}
		}
	}

	sections := make(map[SectionID]SectionDirEntry, h.SectionCount)
	dir := raw[h.SectionDirOff:dirEnd]
	for i := uint32(0); i < h.SectionCount; i++ {
		e := dir[i*SectionDirEntryBytes : (i+1)*SectionDirEntryBytes]
		entry := SectionDirEntry{
			ID:                 SectionID(binary.LittleEndian.Uint16(e[0:2])),
			Flags:              binary.LittleEndian.Uint16(e[2:4]),
			Offset:             binary.LittleEndian.Uint32(e[4:8]),
			Length:             binary.LittleEndian.Uint32(e[8:12]),
			UncompressedLength: binary.LittleEndian.Uint32(e[12:16]),
			CRC32:              binary.LittleEndian.Uint32(e[16:20]),
		}
		end := uint64(entry.Offset) + uint64(entry.Length)
		if end > uint64(len(raw)) {
			return nil, &Error{Reason: fmt.Sprintf("section %d out of bounds", entry.ID)}
		}
		sections[entry.ID] = entry
	}

	snap := &Snapshot{raw: raw, Header: h, sections: sections, decoded: make(map[SectionID][]byte)}

	if sp, ok := sections[SectionSTRPOOL]; ok {
		data, err := snap.section(sp.ID)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(data) {
			return nil, &Error{Reason: "string pool is not valid UTF-8"}
		}
	}

	return snap, nil
}

// Has reports whether the snapshot contains a section with the given ID.
func (s *Snapshot) Has(id SectionID) bool {
	_, ok := s.sections[id]
	return ok
}

// Section returns the decompressed bytes of section id. The result is
// cached; for uncompressed sections it aliases the original snapshot
// bytes (no copy).
func (s *Snapshot) Section(id SectionID) ([]byte, error) {
	return s.section(id)
}

func (s *Snapshot) section(id SectionID) ([]byte, error) {
	if cached, ok := s.decoded[id]; ok {
		return cached, nil
	}
	entry, ok := s.sections[id]
	if !ok {
		return nil, &Error{Reason: fmt.Sprintf("section %d absent", id)}
	}
	raw := s.raw[entry.Offset : entry.Offset+entry.Length]

	if entry.CRC32 != 0 {
		if crc32.ChecksumIEEE(raw) != entry.CRC32 {
			return nil, &Error{Reason: fmt.Sprintf("section %d CRC32 mismatch", id)}
		}
	}

	var out []byte
	switch entry.Compression() {
	case CompressionNone:
		out = raw
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, &Error{Reason: "zstd decoder init: " + err.Error()}
		}
		defer dec.Close()
		buf, err := dec.DecodeAll(raw, make([]byte, 0, entry.UncompressedLength))
		if err != nil {
			return nil, &Error{Reason: fmt.Sprintf("section %d zstd decode: %v", id, err)}
		}
		out = buf
	case CompressionLZ4:
		buf := make([]byte, entry.UncompressedLength)
		n, err := lz4.UncompressBlock(raw, buf)
		if err != nil {
			return nil, &Error{Reason: fmt.Sprintf("section %d lz4 decode: %v", id, err)}
		}
		out = buf[:n]
	default:
		return nil, &Error{Reason: fmt.Sprintf("section %d unknown compression scheme %d", id, entry.Compression())}
	}

	s.decoded[id] = out
	return out, nil
}

// SectionIDs returns every section ID present in the snapshot, for
// diagnostics (get_snapshot_info, spec.md §6).
func (s *Snapshot) SectionIDs() []SectionID {
	out := make([]SectionID, 0, len(s.sections))
	for id := range s.sections {
		out = append(out, id)
	}
	return out
}

// Size returns the total byte length of the snapshot.
func (s *Snapshot) Size() int { return len(s.raw) }
