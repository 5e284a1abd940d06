package types

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/andybalholm/brotli"
)

// StateVersion is the version of the field layout written by Save
// implementations. It is the first byte of every serialized state.
const StateVersion uint8 = 2

var (
	// ErrStateVersion is returned when a state was written with a
	// field layout this build doesn't understand.
	ErrStateVersion = errors.New("state: unsupported version")
	// ErrStateTruncated is returned when a state ends before all
	// fields could be read.
	ErrStateTruncated = errors.New("state: truncated")
)

// Resettable is an interface that allows an object to be reset.
type Resettable interface {
	Reset() // Reset the state of the object
}

// State represents the serialized state of the emulated hardware.
// This is used to save and load states between runs. Each component
// writes its fields in a fixed order, and reads them back in the same
// order; the field list of each component is documented on its Save
// method.
type State struct {
	raw           []byte // raw state data (for serialization)
	readPosition  int    // current read position
	writePosition int    // current write position
	truncated     bool   // a read went past the end of raw
}

// Stater is an interface that allows an object to be saved
// and loaded from a state.
type Stater interface {
	Load(*State) // Load the state of the object
	Save(*State) // Save the state of the object
}

// NewState creates a new state, with the version header already written.
func NewState() *State {
	s := &State{
		raw: make([]byte, 0, 0x400),
	}
	s.Write8(StateVersion)
	return s
}

// ResetPosition resets the read and write positions,
// allowing the state to be read from the beginning.
func (s *State) ResetPosition() {
	s.readPosition = 0
	s.writePosition = 0
	s.truncated = false
}

// StateFromBytes creates a new state from the given bytes, validating
// the version header.
func StateFromBytes(raw []byte) (*State, error) {
	s := &State{
		raw: raw,
	}
	if len(raw) == 0 {
		return nil, ErrStateTruncated
	}
	if v := s.Read8(); v != StateVersion {
		return nil, fmt.Errorf("%w: %d", ErrStateVersion, v)
	}
	return s, nil
}

// StateFromFile reads a brotli compressed state written by SaveToFile.
func StateFromFile(filename string) (*State, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := io.ReadAll(brotli.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("state: decompressing %s: %w", filename, err)
	}

	return StateFromBytes(raw)
}

// Fork returns an independent reader positioned where s is, so the
// remaining fields can be read twice.
func (s *State) Fork() *State {
	return &State{
		raw:          s.raw,
		readPosition: s.readPosition,
		truncated:    s.truncated,
	}
}

func (s *State) Write8(value uint8) {
	s.raw = append(s.raw, value)
	s.writePosition++
}

func (s *State) Write16(value uint16) {
	s.raw = append(s.raw, byte(value), byte(value>>8))
	s.writePosition += 2
}

func (s *State) Write32(value uint32) {
	s.raw = append(s.raw, byte(value), byte(value>>8), byte(value>>16), byte(value>>24))
	s.writePosition += 4
}

func (s *State) WriteBool(value bool) {
	if value {
		s.raw = append(s.raw, 1)
	} else {
		s.raw = append(s.raw, 0)
	}
	s.writePosition++
}

func (s *State) WriteData(data []byte) {
	s.raw = append(s.raw, data...)
	s.writePosition += len(data)
}

// available reports whether n more bytes can be read, flagging the
// state as truncated otherwise.
func (s *State) available(n int) bool {
	if s.readPosition+n > len(s.raw) {
		s.truncated = true
		return false
	}
	return true
}

func (s *State) Read8() uint8 {
	if !s.available(1) {
		return 0
	}
	value := s.raw[s.readPosition]
	s.readPosition++
	return value
}

func (s *State) Read16() uint16 {
	if !s.available(2) {
		return 0
	}
	value := uint16(s.raw[s.readPosition]) | uint16(s.raw[s.readPosition+1])<<8
	s.readPosition += 2
	return value
}

func (s *State) Read32() uint32 {
	if !s.available(4) {
		return 0
	}
	value := uint32(s.raw[s.readPosition]) | uint32(s.raw[s.readPosition+1])<<8 | uint32(s.raw[s.readPosition+2])<<16 | uint32(s.raw[s.readPosition+3])<<24
	s.readPosition += 4
	return value
}

func (s *State) ReadBool() bool {
	return s.Read8() != 0
}

func (s *State) ReadData(p []byte) {
	if !s.available(len(p)) {
		return
	}
	copy(p, s.raw[s.readPosition:])
	s.readPosition += len(p)
}

// Err returns ErrStateTruncated if any read went past the end of the state.
func (s *State) Err() error {
	if s.truncated {
		return ErrStateTruncated
	}
	return nil
}

// SaveToFile writes the state to filename, brotli compressed.
func (s *State) SaveToFile(filename string) error {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(s.raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}

func (s *State) Bytes() []byte {
	return s.raw
}
