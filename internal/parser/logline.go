package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/imishinist/markercheck/internal/models"
)

// UnitTag follows the timestamp digits on every marker line.
const UnitTag = "[us]:"

var (
	ErrNoMatch            = errors.New("line does not match <digits>[us]: <marker>")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

// ParseLine extracts an observation from a line shaped like
//
//	<digits>[us]:<whitespace><marker>
//
// Surrounding whitespace on the line and on the marker name is ignored.
// Lines of any other shape return ErrNoMatch.
//
// Timestamps are limited to uint64 microseconds. A line of the right shape
// whose digits exceed that returns ErrMalformedTimestamp and is reported
// rather than counted, although any digit run is a number.
func ParseLine(line string) (models.Observation, error) {
	line = strings.TrimSpace(line)

	digits := 0
	for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return models.Observation{}, ErrNoMatch
	}

	rest, ok := strings.CutPrefix(line[digits:], UnitTag)
	if !ok {
		return models.Observation{}, ErrNoMatch
	}

	r, size := utf8.DecodeRuneInString(rest)
	if size == 0 || !unicode.IsSpace(r) {
		return models.Observation{}, ErrNoMatch
	}
	name := strings.TrimSpace(rest[size:])
	if name == "" {
		return models.Observation{}, ErrNoMatch
	}

	micros, err := strconv.ParseUint(line[:digits], 10, 64)
	if err != nil {
		return models.Observation{}, fmt.Errorf("%w: %v", ErrMalformedTimestamp, err)
	}

	return models.Observation{Marker: name, Micros: micros}, nil
}
