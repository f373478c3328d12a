package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how raw lesson tokens are interpreted when they are parsed.
type Mode string

const (
	// ModeNumeric requires every token to be a positive lesson number.
	ModeNumeric Mode = "numeric"
	// ModeRaw keeps tokens as submitted; numeric-looking tokens still compare as numbers.
	ModeRaw Mode = "raw"
)

var (
	// ErrEmptyMarkers indicates a delta without any lesson marker.
	ErrEmptyMarkers = errors.New("lesson markers must not be empty")
	// ErrUnknownMode indicates an unsupported marker mode.
	ErrUnknownMode = errors.New("unknown marker mode")
	// ErrCorruptHistory reports a stored history that cannot be decoded.
	ErrCorruptHistory = errors.New("stored lesson history is unreadable")
)

// InvalidMarkerError reports a token that could not be parsed in numeric mode.
type InvalidMarkerError struct {
	Token string
}

func (e *InvalidMarkerError) Error() string {
	return fmt.Sprintf("invalid lesson marker %q", e.Token)
}

// ParseMode normalises a configured mode name.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeNumeric, "":
		return ModeNumeric, nil
	case ModeRaw:
		return ModeRaw, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownMode, value)
	}
}

// Marker identifies one completed lesson. Integer markers are stored in canonical
// decimal form so that "05" and 5 are the same lesson.
type Marker string

// NewMarker builds a marker from a lesson number.
func NewMarker(lesson int) Marker {
	return Marker(strconv.Itoa(lesson))
}

// Int returns the lesson number when the marker is an integer.
func (m Marker) Int() (int, bool) {
	if !isDigits(string(m)) {
		return 0, false
	}
	value, err := strconv.Atoi(string(m))
	if err != nil {
		return 0, false
	}
	return value, true
}

// IsZero reports whether the marker is the empty sentinel.
func (m Marker) IsZero() bool {
	return m == ""
}

func (m Marker) String() string {
	return string(m)
}

// MarshalJSON writes integer markers as JSON numbers and everything else as strings.
func (m Marker) MarshalJSON() ([]byte, error) {
	if value, ok := m.Int(); ok {
		return []byte(strconv.Itoa(value)), nil
	}
	return json.Marshal(string(m))
}

// UnmarshalJSON accepts numbers (including legacy float storage) and strings.
func (m *Marker) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*m = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*m = canonical(text)
		return nil
	}

	number, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fmt.Errorf("decode marker: %w", err)
	}
	if number == float64(int64(number)) {
		*m = Marker(strconv.FormatInt(int64(number), 10))
		return nil
	}
	*m = Marker(strconv.FormatFloat(number, 'f', -1, 64))
	return nil
}

// ParseMarkers splits a submitted lesson string such as "5" or "5,7".
func ParseMarkers(raw string, mode Mode) ([]Marker, error) {
	return FromTokens(splitTokens(raw), mode)
}

// FromTokens converts already-split tokens into markers, preserving their order.
func FromTokens(tokens []string, mode Mode) ([]Marker, error) {
	markers := make([]Marker, 0, len(tokens))
	for _, token := range tokens {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}

		switch mode {
		case ModeNumeric, "":
			value, err := strconv.Atoi(trimmed)
			if err != nil || value <= 0 {
				return nil, &InvalidMarkerError{Token: trimmed}
			}
			markers = append(markers, NewMarker(value))
		case ModeRaw:
			markers = append(markers, canonical(trimmed))
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
		}
	}

	if len(markers) == 0 {
		return nil, ErrEmptyMarkers
	}
	return markers, nil
}

// Join renders markers the way teachers type them.
func Join(markers []Marker) string {
	parts := make([]string, 0, len(markers))
	for _, marker := range markers {
		parts = append(parts, marker.String())
	}
	return strings.Join(parts, ",")
}

// Less orders integer markers numerically ahead of free-form markers.
func Less(a, b Marker) bool {
	av, aInt := a.Int()
	bv, bInt := b.Int()
	switch {
	case aInt && bInt:
		return av < bv
	case aInt:
		return true
	case bInt:
		return false
	default:
		return a < b
	}
}

func splitTokens(raw string) []string {
	normalized := strings.ReplaceAll(raw, "，", ",")
	return strings.Split(normalized, ",")
}

func canonical(token string) Marker {
	trimmed := strings.TrimSpace(token)
	if isDigits(trimmed) {
		if value, err := strconv.Atoi(trimmed); err == nil {
			return NewMarker(value)
		}
	}
	return Marker(trimmed)
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
