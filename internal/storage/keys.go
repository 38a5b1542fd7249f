package storage

import (
	"fmt"
	"path"
	"regexp"
)

var keyComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ExportKey is the object key of one encoded batch file:
// exports/<run>/<split>/part-00003.parquet.
func ExportKey(runID, split string, part int) (string, error) {
	if err := validateComponent(runID, "run id"); err != nil {
		return "", err
	}
	if err := validateComponent(split, "split"); err != nil {
		return "", err
	}
	if part < 0 {
		return "", fmt.Errorf("%w: part must be >= 0", ErrInvalidKey)
	}
	return path.Join("exports", runID, split, fmt.Sprintf("part-%05d.parquet", part)), nil
}

// PredictionsKey is the object key of the prediction file written for a run.
func PredictionsKey(runID, split string) (string, error) {
	if err := validateComponent(runID, "run id"); err != nil {
		return "", err
	}
	if err := validateComponent(split, "split"); err != nil {
		return "", err
	}
	return path.Join("predictions", runID, split+".jsonl"), nil
}

func validateComponent(value, field string) error {
	if !keyComponentPattern.MatchString(value) {
		return fmt.Errorf("%w: %s %q", ErrInvalidKey, field, value)
	}
	return nil
}
