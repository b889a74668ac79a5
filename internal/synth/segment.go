package synth

import "time"

// Segment is one unit of produced audio in playback order.
type Segment struct {
	NodeID       int64         `json:"node_id"`
	Audio        []byte        `json:"-"`
	IsSilence    bool          `json:"is_silence"`
	DurationHint time.Duration `json:"duration_hint"`
}

// Audio is the concatenation of a run's segments.
type Audio struct {
	Data     []byte
	Segments int
	Duration time.Duration
}

// Assemble concatenates segments in order. Segments are assumed to share
// one format; nothing is transcoded.
func Assemble(segments []Segment) Audio {
	size := 0
	for _, s := range segments {
		size += len(s.Audio)
	}

	out := Audio{Data: make([]byte, 0, size), Segments: len(segments)}
	for _, s := range segments {
		out.Data = append(out.Data, s.Audio...)
		out.Duration += s.DurationHint
	}
	return out
}
