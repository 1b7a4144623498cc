package audio

// NormalizeToWAV returns buf as WAV.
//
//   - RIFF/WAV input is returned unchanged, without validation.
//   - AIFF input has its SSND payload re-wrapped in a CanonicalFormat WAV.
//   - Anything else fails with an *UnsupportedFormatError.
func NormalizeToWAV(buf []byte) ([]byte, error) {
	switch Classify(buf) {
	case FormatWAV:
		return buf, nil
	case FormatAIFF:
		samples, err := ExtractSoundData(buf)
		if err != nil {
			return nil, err
		}

		return EncodeWAV(samples, CanonicalFormat)
	default:
		return nil, newUnsupportedFormatError(buf)
	}
}
