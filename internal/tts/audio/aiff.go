package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// AIFF layout constants.
const (
	aiffHeaderSize      = 12 // "FORM" + size + form type
	chunkIDSize         = 4
	chunkSizeFieldSize  = 4
	chunkHeaderSize     = chunkIDSize + chunkSizeFieldSize
	soundSubHeaderSize  = 8 // SSND offset + blockSize, both ignored
	soundDataChunkIDStr = "SSND"
)

// Error formats.
const (
	errFmtNoFormHeader = "%w: missing FORM header (%d bytes)"
	errFmtChunkOverrun = "%w: chunk %q at offset %d declares %d bytes, only %d remain"
	errFmtShortSSND    = "%w: SSND chunk at offset %d declares %d bytes, sub-header needs %d"
	errFmtNoSoundChunk = "%w: scanned %d bytes"
)

// Chunk is a single AIFF chunk header located at Offset.
type Chunk struct {
	ID     string
	Size   uint32
	Offset int
}

// readChunk reads the chunk header at offset and checks that its payload fits.
// The caller guarantees offset+chunkHeaderSize <= len(buf).
func readChunk(buf []byte, offset int) (Chunk, error) {
	chunkID := buf[offset : offset+chunkIDSize]
	chunkSize := binary.BigEndian.Uint32(buf[offset+chunkIDSize : offset+chunkHeaderSize])

	remaining := uint64(len(buf) - offset - chunkHeaderSize)
	if uint64(chunkSize) > remaining {
		return Chunk{}, fmt.Errorf(errFmtChunkOverrun, ErrTruncatedChunk, chunkID, offset, chunkSize, remaining)
	}

	return Chunk{ID: string(chunkID), Size: chunkSize, Offset: offset}, nil
}

// ExtractSoundData returns a copy of the raw sample bytes held in the first
// SSND chunk of an AIFF buffer.
//
// Chunks are walked from offset 12 and advanced by 8+size with no pad byte
// for odd sizes. Walking stops once fewer than eight bytes remain after the
// cursor.
func ExtractSoundData(buf []byte) ([]byte, error) {
	if len(buf) < aiffHeaderSize || !bytes.Equal(buf[:magicSize], formMagic) {
		return nil, fmt.Errorf(errFmtNoFormHeader, ErrMalformedContainer, len(buf))
	}

	offset := aiffHeaderSize
	for offset < len(buf)-chunkHeaderSize {
		chunk, err := readChunk(buf, offset)
		if err != nil {
			return nil, err
		}

		if chunk.ID == soundDataChunkIDStr {
			return soundPayload(buf, chunk)
		}

		offset += chunkHeaderSize + int(chunk.Size)
	}

	return nil, fmt.Errorf(errFmtNoSoundChunk, ErrMissingSoundChunk, len(buf))
}

func soundPayload(buf []byte, chunk Chunk) ([]byte, error) {
	if chunk.Size < soundSubHeaderSize {
		return nil, fmt.Errorf(errFmtShortSSND, ErrTruncatedChunk, chunk.Offset, chunk.Size, soundSubHeaderSize)
	}

	start := chunk.Offset + chunkHeaderSize + soundSubHeaderSize
	end := chunk.Offset + chunkHeaderSize + int(chunk.Size)

	samples := make([]byte, end-start)
	copy(samples, buf[start:end])

	return samples, nil
}
