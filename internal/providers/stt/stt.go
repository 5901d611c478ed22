package stt

import "context"

// Kind classifies what the transcription service sent back. Upstream
// misbehavior degrades to a Kind instead of an error so every response
// shape maps to a defined outcome.
type Kind int

const (
	// KindUnknown is the zero value, the Kind of an Outcome returned
	// beside an error. It must never alias a meaningful variant.
	KindUnknown Kind = iota
	// KindEmpty means the service returned a completely empty body.
	KindEmpty
	// KindMalformed means the body was non-empty but not valid JSON.
	KindMalformed
	// KindParsed means the body decoded; Text may still be empty when
	// the service produced no transcription.
	KindParsed
)

// Outcome is the tagged result of one transcription call.
type Outcome struct {
	Kind Kind
	Text string
}

// Transcriber sends an encoded audio file to a speech-to-text service.
// A non-nil error means no response was obtained at all; any received
// response, whatever its shape, is reported as an Outcome.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Outcome, error)
}
