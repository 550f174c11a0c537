package media

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MP3Info is what ProbeMP3 learns from the first frame header.
type MP3Info struct {
	Bitrate    int     // bits per second
	SampleRate int     // Hz
	Offset     int64   // byte offset of the audio data (after any ID3v2 tag)
	Duration   float64 // seconds, estimated from size and bitrate
}

// MPEG audio bitrate tables in kbit/s (ISO 11172-3 / 13818-3).
var bitrateTable = [2][3][16]int{
	// MPEG-1
	{
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
	},
	// MPEG-2 / MPEG-2.5
	{
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
	},
}

var sampleRateTable = [3][4]int{
	{44100, 48000, 32000, 0}, // MPEG-1
	{22050, 24000, 16000, 0}, // MPEG-2
	{11025, 12000, 8000, 0},  // MPEG-2.5
}

const scanWindow = 8192

// TagSize returns the total length of an ID3v2 tag starting at header,
// including its 10-byte header, or 0 when header does not start a tag.
func TagSize(header []byte) int64 {
	if len(header) < 10 || string(header[:3]) != "ID3" {
		return 0
	}
	// synchsafe: four bytes of seven bits each
	size := int64(header[6]&0x7F)<<21 | int64(header[7]&0x7F)<<14 | int64(header[8]&0x7F)<<7 | int64(header[9]&0x7F)
	return 10 + size
}

// ProbeMP3 reads the start of an MP3 stream of size bytes and estimates its
// duration from the first valid frame header.
func ProbeMP3(r io.Reader, size int64) (MP3Info, error) {
	var header [10]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil && err != io.ErrUnexpectedEOF {
		return MP3Info{}, fmt.Errorf("read header: %w", err)
	}

	offset := TagSize(header[:n])
	var buf []byte
	if offset > 0 {
		if _, err := io.CopyN(io.Discard, r, offset-10); err != nil {
			return MP3Info{}, fmt.Errorf("skip id3 tag: %w", err)
		}
		buf = make([]byte, scanWindow)
		m, err := io.ReadFull(r, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return MP3Info{}, fmt.Errorf("read frames: %w", err)
		}
		buf = buf[:m]
	} else {
		buf = make([]byte, scanWindow)
		copy(buf, header[:n])
		m, err := io.ReadFull(r, buf[n:])
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return MP3Info{}, fmt.Errorf("read frames: %w", err)
		}
		buf = buf[:n+m]
	}

	info, err := ScanFrames(buf, size-offset)
	if err != nil {
		return MP3Info{}, err
	}
	info.Offset = offset
	return info, nil
}

// ScanFrames looks for the first valid MPEG frame header in buf, which must
// start at the audio data, and estimates the duration of audioSize bytes.
func ScanFrames(buf []byte, audioSize int64) (MP3Info, error) {
	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] != 0xFF || buf[i+1]&0xE0 != 0xE0 {
			continue
		}
		hdr := binary.BigEndian.Uint32(buf[i : i+4])

		versionBits := (hdr >> 19) & 0x03
		layerBits := (hdr >> 17) & 0x03
		bitrateIdx := (hdr >> 12) & 0x0F
		sampleIdx := (hdr >> 10) & 0x03

		if bitrateIdx == 0 || bitrateIdx == 15 || sampleIdx == 3 || layerBits == 0 {
			continue
		}

		var versionIdx, sampleVersion int
		switch versionBits {
		case 3:
			versionIdx, sampleVersion = 0, 0 // MPEG-1
		case 2:
			versionIdx, sampleVersion = 1, 1 // MPEG-2
		case 0:
			versionIdx, sampleVersion = 1, 2 // MPEG-2.5
		default:
			continue
		}

		// layer bits: 1=III, 2=II, 3=I
		layerIdx := 3 - int(layerBits)

		bitrate := bitrateTable[versionIdx][layerIdx][bitrateIdx] * 1000
		sampleRate := sampleRateTable[sampleVersion][sampleIdx]
		if bitrate == 0 || sampleRate == 0 {
			continue
		}

		info := MP3Info{Bitrate: bitrate, SampleRate: sampleRate}
		if audioSize > 0 {
			info.Duration = float64(audioSize*8) / float64(bitrate)
		}
		return info, nil
	}
	return MP3Info{}, fmt.Errorf("no valid MPEG frame found")
}
