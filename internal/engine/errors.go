package engine

import "errors"

// isNotFound reports whether err is the missing-collection sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, ErrCollectionNotFound)
}

// isExists reports whether err is the duplicate-collection sentinel.
func isExists(err error) bool {
	return errors.Is(err, ErrCollectionExists)
}
