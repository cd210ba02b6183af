package parser

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Velocidex/ordereddict"
)

var (
	SignatureMismatchError      = errors.New("SignatureMismatch")
	TruncatedRecordError        = errors.New("TruncatedRecord")
	FixupMismatchError          = errors.New("FixupMismatch")
	RunlistDecodeError          = errors.New("RunlistDecodeError")
	OutOfBoundsOffsetError      = errors.New("OutOfBoundsOffset")
	UnsupportedUsnVersionError  = errors.New("UnsupportedUsnVersion")
	CycleDetectedError          = errors.New("CycleDetected")
	AllocationInconsistentError = errors.New("AllocationInconsistent")

	EmptyBufferError = errors.New("Empty buffer")
	NotFoundError    = errors.New("Not found")
)

type ErrorKind int

const (
	SignatureMismatch ErrorKind = iota + 1
	TruncatedRecord
	FixupMismatch
	RunlistDecode
	OutOfBoundsOffset
	UnsupportedUsnVersion
	CycleDetected
	AllocationInconsistent
)

func (self ErrorKind) Error() error {
	switch self {
	case SignatureMismatch:
		return SignatureMismatchError
	case TruncatedRecord:
		return TruncatedRecordError
	case FixupMismatch:
		return FixupMismatchError
	case RunlistDecode:
		return RunlistDecodeError
	case OutOfBoundsOffset:
		return OutOfBoundsOffsetError
	case UnsupportedUsnVersion:
		return UnsupportedUsnVersionError
	case CycleDetected:
		return CycleDetectedError
	case AllocationInconsistent:
		return AllocationInconsistentError
	}
	return errors.New("Unknown")
}

func (self ErrorKind) String() string {
	return self.Error().Error()
}

func (self ErrorKind) MarshalText() ([]byte, error) {
	return []byte(self.String()), nil
}

// A ParseError is a decoding failure at a known offset. It unwraps to
// the sentinel for its kind so callers can use errors.Is().
type ParseError struct {
	Kind    ErrorKind
	Offset  int64
	Message string
}

func (self *ParseError) Error() string {
	if self.Message == "" {
		return fmt.Sprintf("%v at offset %#x", self.Kind, self.Offset)
	}
	return fmt.Sprintf("%v at offset %#x: %v", self.Kind, self.Offset, self.Message)
}

func (self *ParseError) Unwrap() error {
	return self.Kind.Error()
}

func newParseError(kind ErrorKind, offset int64,
	format string, args ...interface{}) *ParseError {
	return &ParseError{
		Kind:    kind,
		Offset:  offset,
		Message: fmt.Sprintf(format, args...),
	}
}

// Returns the kind of err if it is (or wraps) a ParseError.
func KindOf(err error) (ErrorKind, bool) {
	var parse_error *ParseError
	if errors.As(err, &parse_error) {
		return parse_error.Kind, true
	}
	return 0, false
}

type Diagnostic struct {
	Offset      int64     `json:"offset"`
	RecordIndex int64     `json:"record_index"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
}

func (self Diagnostic) String() string {
	return fmt.Sprintf("%v at %#x (record %d): %v",
		self.Kind, self.Offset, self.RecordIndex, self.Message)
}

// Diagnostics collects recoverable errors from concurrent decoders.
type Diagnostics struct {
	mu    sync.Mutex
	items []Diagnostic
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

func (self *Diagnostics) Add(record_index int64, err error) {
	if err == nil {
		return
	}

	var parse_error *ParseError
	if !errors.As(err, &parse_error) {
		parse_error = &ParseError{Kind: OutOfBoundsOffset, Message: err.Error()}
	}

	self.AddDiagnostic(Diagnostic{
		Offset:      parse_error.Offset,
		RecordIndex: record_index,
		Kind:        parse_error.Kind,
		Message:     parse_error.Message,
	})
}

func (self *Diagnostics) AddDiagnostic(d Diagnostic) {
	self.mu.Lock()
	defer self.mu.Unlock()

	DebugPrint("Diagnostic: %v\n", d)
	self.items = append(self.items, d)
}

// Items returns the diagnostics ordered by record index then offset.
func (self *Diagnostics) Items() []Diagnostic {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := append([]Diagnostic{}, self.items...)
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].RecordIndex != result[j].RecordIndex {
			return result[i].RecordIndex < result[j].RecordIndex
		}
		return result[i].Offset < result[j].Offset
	})
	return result
}

func (self *Diagnostics) Len() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return len(self.items)
}

// Summary counts diagnostics by kind in taxonomy order.
func (self *Diagnostics) Summary() *ordereddict.Dict {
	self.mu.Lock()
	defer self.mu.Unlock()

	counts := make(map[ErrorKind]int)
	for _, item := range self.items {
		counts[item.Kind]++
	}

	result := ordereddict.NewDict()
	for kind := SignatureMismatch; kind <= AllocationInconsistent; kind++ {
		count, pres := counts[kind]
		if pres {
			result.Set(kind.String(), count)
		}
	}
	return result
}
