package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDetection      = errors.New("detection failed")
	ErrCrop           = errors.New("crop failed")
	ErrClassification = errors.New("classification failed")
	ErrLookup         = errors.New("catalog lookup failed")
	ErrPublish        = errors.New("result publish failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
