package midiparser

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidHeader  = errors.New("invalid midi header")
	ErrTruncatedTrack = errors.New("truncated midi track")
)

type TrackError struct {
	Track  int
	Offset int
	Err    error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("track %d at byte %d: %v", e.Track, e.Offset, e.Err)
}

func (e *TrackError) Unwrap() error {
	return e.Err
}

func invalidHeader(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidHeader, fmt.Sprintf(format, args...))
}

func truncated(track, offset int, reason string) error {
	return &TrackError{Track: track, Offset: offset, Err: fmt.Errorf("%w: %s", ErrTruncatedTrack, reason)}
}
