package audio

import (
	"encoding/binary"
	"fmt"
	"io"
)

const wavHeaderSize = 44

// WriteWAV writes pcm wrapped in a canonical RIFF/WAVE header.
func WriteWAV(w io.Writer, pcm []byte, f Format) error {
	if f.BytesPerFrame() == 0 {
		return fmt.Errorf("invalid format %+v", f)
	}

	var hdr [wavHeaderSize]byte
	le := binary.LittleEndian
	copy(hdr[0:], "RIFF")
	le.PutUint32(hdr[4:], uint32(wavHeaderSize-8+len(pcm)))
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	le.PutUint32(hdr[16:], 16)
	le.PutUint16(hdr[20:], 1) // PCM
	le.PutUint16(hdr[22:], uint16(f.Channels))
	le.PutUint32(hdr[24:], uint32(f.SampleRate))
	le.PutUint32(hdr[28:], uint32(f.SampleRate*f.BytesPerFrame()))
	le.PutUint16(hdr[32:], uint16(f.BytesPerFrame()))
	le.PutUint16(hdr[34:], uint16(f.BitDepth))
	copy(hdr[36:], "data")
	le.PutUint32(hdr[40:], uint32(len(pcm)))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// ReadWAV returns the PCM payload and format of a canonical WAV stream as
// written by WriteWAV.
func ReadWAV(r io.Reader) ([]byte, Format, error) {
	var hdr [wavHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, Format{}, fmt.Errorf("read wav header: %w", err)
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" || string(hdr[36:40]) != "data" {
		return nil, Format{}, fmt.Errorf("not a canonical wav stream")
	}

	le := binary.LittleEndian
	f := Format{
		Channels:   int(le.Uint16(hdr[22:])),
		SampleRate: int(le.Uint32(hdr[24:])),
		BitDepth:   int(le.Uint16(hdr[34:])),
	}
	pcm := make([]byte, le.Uint32(hdr[40:]))
	if _, err := io.ReadFull(r, pcm); err != nil {
		return nil, Format{}, fmt.Errorf("read wav data: %w", err)
	}
	return pcm, f, nil
}
