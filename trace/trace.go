// Package trace reads the per-core memory traces replayed by the simulator.
//
// A trace is a text file with one record per line. A record is a label and a
// hexadecimal operand separated by white space:
//
//	0 817ba0   read address 0x817ba0
//	1 817ba4   write address 0x817ba4
//	2 1f       compute for 0x1f cycles
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedRecord is wrapped by the errors returned for records that
// cannot be decoded.
var ErrMalformedRecord = errors.New("malformed trace record")

// Kind is the type of a trace record.
type Kind int

// The record kinds, numbered as their labels.
const (
	Read Kind = iota
	Write
	Compute
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	case Compute:
		return "compute"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// A Request is one decoded trace record. For reads and writes Operand is a
// memory address; for compute records it is a number of cycles.
type Request struct {
	Kind    Kind
	Operand uint64
}

// Reader decodes requests from a trace.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader that decodes the records of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		scanner: bufio.NewScanner(r),
	}
}

// Next returns the next request. It returns io.EOF after the last one.
func (r *Reader) Next() (Request, error) {
	for r.scanner.Scan() {
		r.line++

		fields := strings.Fields(r.scanner.Text())
		if len(fields) == 0 {
			continue
		}

		return r.decode(fields)
	}

	err := r.scanner.Err()
	if err != nil {
		return Request{}, err
	}

	return Request{}, io.EOF
}

func (r *Reader) decode(fields []string) (Request, error) {
	if len(fields) != 2 {
		return Request{}, fmt.Errorf("%w: line %d: expected 2 fields, got %d",
			ErrMalformedRecord, r.line, len(fields))
	}

	label, err := strconv.ParseUint(fields[0], 10, 8)
	if err != nil || Kind(label) > Compute {
		return Request{}, fmt.Errorf("%w: line %d: label %q out of range",
			ErrMalformedRecord, r.line, fields[0])
	}

	operand, err := parseHex(fields[1])
	if err != nil {
		return Request{}, fmt.Errorf("%w: line %d: bad operand %q",
			ErrMalformedRecord, r.line, fields[1])
	}

	return Request{Kind: Kind(label), Operand: operand}, nil
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}

// CountRecords returns the number of non-blank lines of r.
func CountRecords(r io.Reader) (uint64, error) {
	scanner := bufio.NewScanner(r)

	var n uint64
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			n++
		}
	}

	return n, scanner.Err()
}
