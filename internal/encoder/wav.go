package encoder

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Heracs/MeetingSonar-sub001/internal/audio"
)

// wavBitDepth is the PCM depth of WAV output.
const wavBitDepth = 16

// wavBackend encodes 16-bit PCM WAV with go-audio.
type wavBackend struct {
	file   *os.File
	enc    *wav.Encoder
	format audio.Format
	buf    *goaudio.IntBuffer
}

// NewWAVWriter creates path and returns a Writer encoding 16-bit PCM WAV.
func NewWAVWriter(path string, format audio.Format, opts ...Option) (*Writer, error) {
	// #nosec G304 -- path is built by the recording controller
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	b := &wavBackend{
		file:   f,
		enc:    wav.NewEncoder(f, format.SampleRate, wavBitDepth, format.Channels, 1),
		format: format,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			SourceBitDepth: wavBitDepth,
		},
	}
	return newWriter(path, format, b, opts), nil
}

func (b *wavBackend) writeFrame(frame audio.Frame) error {
	samples := audio.Remix(frame.Samples, frame.Channels, b.format.Channels)
	if cap(b.buf.Data) < len(samples) {
		b.buf.Data = make([]int, len(samples))
	}
	b.buf.Data = b.buf.Data[:len(samples)]
	for i, s := range samples {
		b.buf.Data[i] = int(audio.FloatToInt16(s))
	}
	if err := b.enc.Write(b.buf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	return nil
}

// close writes the WAV header sizes and closes the file.
func (b *wavBackend) close() error {
	encErr := b.enc.Close()
	fileErr := b.file.Close()
	if encErr != nil {
		return fmt.Errorf("wav close: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("close file: %w", fileErr)
	}
	return nil
}
