package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// WAV layout constants.
const (
	WAV_HEADER_SIZE     = 44
	WAV_FMT_CHUNK_SIZE  = 16
	WAV_FORMAT_PCM      = 1
	riffHeaderSize      = 12 // "RIFF" + size + "WAVE"
	riffSizeFieldBase   = WAV_HEADER_SIZE - chunkHeaderSize
	streamingSizeMarker = 0xFFFFFFFF
)

const (
	errFmtNoRIFF = "%w: missing RIFF/WAVE header (%d bytes)"
	errFmtNoFmt  = "%w: no fmt chunk before data"
	errFmtNoData = "%w: no data chunk in %d bytes"
	errFmtShort  = "%w: fmt chunk is %d bytes, need %d"
)

var (
	waveMagic   = []byte("WAVE")
	fmtChunkID  = []byte("fmt ")
	dataChunkID = []byte("data")
)

// EncodeWAV wraps samples in a minimal canonical WAV container: a RIFF
// header, a 16-byte PCM fmt chunk and a data chunk holding samples verbatim.
//
// The samples are not inspected. An odd-length buffer for 16-bit audio
// produces a well-formed but garbled file.
func EncodeWAV(samples []byte, format PCMFormat) ([]byte, error) {
	validateErr := format.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	dataSize := len(samples)
	out := make([]byte, WAV_HEADER_SIZE, WAV_HEADER_SIZE+dataSize)

	copy(out[0:4], riffMagic)
	binary.LittleEndian.PutUint32(out[4:8], uint32(riffSizeFieldBase+dataSize))
	copy(out[8:12], waveMagic)

	copy(out[12:16], fmtChunkID)
	binary.LittleEndian.PutUint32(out[16:20], WAV_FMT_CHUNK_SIZE)
	binary.LittleEndian.PutUint16(out[20:22], WAV_FORMAT_PCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(format.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(format.ByteRate()))
	binary.LittleEndian.PutUint16(out[32:34], uint16(format.BlockAlign()))
	binary.LittleEndian.PutUint16(out[34:36], uint16(format.BitsPerSample()))

	copy(out[36:40], dataChunkID)
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataSize))

	return append(out, samples...), nil
}

// Inspect parses the header of a RIFF/WAVE buffer. Unlike the AIFF walker it
// honours RIFF word alignment, so metadata chunks such as LIST are skipped
// correctly. A data chunk whose size is the streaming marker 0xFFFFFFFF is
// taken to run to the end of the buffer.
func Inspect(buf []byte) (*Info, error) {
	if len(buf) < riffHeaderSize || !bytes.Equal(buf[0:4], riffMagic) || !bytes.Equal(buf[8:12], waveMagic) {
		return nil, fmt.Errorf(errFmtNoRIFF, ErrMalformedContainer, len(buf))
	}

	var (
		format   PCMFormat
		foundFmt bool
	)

	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(buf) {
		chunkID := buf[offset : offset+chunkIDSize]
		chunkSize := binary.LittleEndian.Uint32(buf[offset+chunkIDSize : offset+chunkHeaderSize])
		payloadStart := offset + chunkHeaderSize
		remaining := uint64(len(buf) - payloadStart)

		if bytes.Equal(chunkID, dataChunkID) {
			if !foundFmt {
				return nil, fmt.Errorf(errFmtNoFmt, ErrInvalidFormat)
			}

			dataSize := uint64(chunkSize)
			if chunkSize == streamingSizeMarker {
				dataSize = remaining
			} else if dataSize > remaining {
				return nil, fmt.Errorf(errFmtChunkOverrun, ErrTruncatedChunk, chunkID, offset, chunkSize, remaining)
			}

			return newInfo(format, int64(dataSize), int64(len(buf))), nil
		}

		if uint64(chunkSize) > remaining {
			return nil, fmt.Errorf(errFmtChunkOverrun, ErrTruncatedChunk, chunkID, offset, chunkSize, remaining)
		}

		if bytes.Equal(chunkID, fmtChunkID) {
			parsed, err := parseFmtChunk(buf[payloadStart : payloadStart+int(chunkSize)])
			if err != nil {
				return nil, err
			}

			format = parsed
			foundFmt = true
		}

		offset = payloadStart + int(chunkSize)
		if chunkSize%2 != 0 {
			offset++
		}
	}

	return nil, fmt.Errorf(errFmtNoData, ErrMissingSoundChunk, len(buf))
}

func parseFmtChunk(payload []byte) (PCMFormat, error) {
	if len(payload) < WAV_FMT_CHUNK_SIZE {
		return PCMFormat{}, fmt.Errorf(errFmtShort, ErrInvalidFormat, len(payload), WAV_FMT_CHUNK_SIZE)
	}

	bitsPerSample := int(binary.LittleEndian.Uint16(payload[14:16]))

	return PCMFormat{
		Channels:    int(binary.LittleEndian.Uint16(payload[2:4])),
		SampleRate:  int(binary.LittleEndian.Uint32(payload[4:8])),
		SampleWidth: (bitsPerSample + BITS_PER_BYTE - 1) / BITS_PER_BYTE,
	}, nil
}

func newInfo(format PCMFormat, dataSize, fileSize int64) *Info {
	var duration time.Duration
	if byteRate := format.ByteRate(); byteRate > 0 {
		duration = time.Duration(float64(dataSize) / float64(byteRate) * float64(time.Second))
	}

	return &Info{
		Format:     FormatWAV,
		Duration:   duration,
		FileSize:   fileSize,
		DataSize:   dataSize,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		BitDepth:   format.BitsPerSample(),
	}
}
