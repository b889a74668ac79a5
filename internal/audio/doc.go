// Package audio handles the raw PCM produced by synthesis: format
// arithmetic, silence generation, WAV packaging and playback through
// oto/v3.
package audio
