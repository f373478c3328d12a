// Package progress keeps a student's lesson history consistent: it merges reported
// deltas into the stored history and derives the display values shown to each role.
package progress

import (
	"fmt"
	"sort"
)

// Subject is anything carrying a lesson history and a cached counter.
type Subject interface {
	DecodeProgress() ([]Marker, error)
	SetProgress(markers []Marker)
	SetLearningProgress(counter int)
}

// Record folds delta into the subject's history. The counter reflects only this
// write's list, never the merged history.
func Record(subject Subject, delta []Marker) error {
	if len(delta) == 0 {
		return ErrEmptyMarkers
	}

	history, err := subject.DecodeProgress()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}

	subject.SetProgress(Merge(history, delta))
	subject.SetLearningProgress(LearningCounter(delta))
	return nil
}

// Merge returns the sorted union of history and delta without duplicates.
func Merge(history, delta []Marker) []Marker {
	seen := make(map[Marker]struct{}, len(history)+len(delta))
	merged := make([]Marker, 0, len(history)+len(delta))
	for _, list := range [][]Marker{history, delta} {
		for _, marker := range list {
			if marker.IsZero() {
				continue
			}
			if _, ok := seen[marker]; ok {
				continue
			}
			seen[marker] = struct{}{}
			merged = append(merged, marker)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return Less(merged[i], merged[j])
	})
	return merged
}

// Current returns the furthest lesson in a sorted history, or the zero marker.
func Current(history []Marker) Marker {
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1]
}

// LearningCounter derives the cached lesson counter from the most recent write.
// A non-numeric final marker falls back to the length of the list.
func LearningCounter(delta []Marker) int {
	if len(delta) == 0 {
		return 0
	}
	if value, ok := delta[len(delta)-1].Int(); ok {
		return value
	}
	return len(delta)
}

// CoursePercent converts the lesson counter to a capped percentage.
func CoursePercent(counter int) int {
	percent := counter * 10
	if percent > 100 {
		return 100
	}
	if percent < 0 {
		return 0
	}
	return percent
}
