package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// bytesPerSample of the f32le wire format
const bytesPerSample = 4

// readChunk is how many whole sample frames ReadPCM pulls per read
const readChunk = 4096

// ReadPCM decodes interleaved little-endian float32 PCM in the canonical
// layout from r until EOF. hint, when positive, presizes the sample buffer
// for that much audio. A trailing partial sample frame is dropped.
func ReadPCM(r io.Reader, hint time.Duration) (*Track, error) {
	t := NewTrack(nil)
	if n := t.framesFor(hint) * Channels; n > 0 {
		t.Samples = make([]float32, 0, n)
	}

	frame := bytesPerSample * Channels
	buf := make([]byte, readChunk*frame)
	for {
		n, err := io.ReadFull(r, buf)
		n -= n % frame
		for i := 0; i < n; i += bytesPerSample {
			t.Samples = append(t.Samples, math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])))
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read pcm: %w", err)
		}
	}
}

// WriteTo writes the samples as interleaved little-endian float32 PCM
func (t *Track) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, binary.LittleEndian, t.Samples); err != nil {
		return 0, fmt.Errorf("write pcm: %w", err)
	}
	return int64(len(t.Samples) * bytesPerSample), nil
}
