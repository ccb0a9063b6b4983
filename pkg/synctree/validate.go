package synctree

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mikekulinski/collab/pkg/xvalue"
)

// MaxNameLength bounds element names in bytes.
const MaxNameLength = 255

// ErrInvalidName is returned for names an element cannot carry.
var ErrInvalidName = errors.New("synctree: invalid element name")

// validateName verifies that a name can identify an element among its siblings and inside a path.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name is longer than %d bytes", ErrInvalidName, MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidName)
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("%w: name contains a '/'", ErrInvalidName)
	}
	return nil
}

// validateValue rejects values a peer could not decode.
func validateValue(v xvalue.Value) error {
	if str, ok := v.Str(); ok && len(str) > xvalue.MaxStringLength {
		return fmt.Errorf("%w: %d bytes", xvalue.ErrStringTooLarge, len(str))
	}
	return nil
}

// validatePath verifies that a path starts at the root and names at least one element.
func validatePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path does not start at the root")
	}

	if path == "/" {
		return fmt.Errorf("path cannot be the root")
	}

	if strings.HasSuffix(path, "/") {
		return fmt.Errorf("path should end in an element name, not a '/'")
	}

	// Since we have a leading /, then we expect the first name to be empty.
	for _, name := range strings.Split(path, "/")[1:] {
		if name == "" {
			return fmt.Errorf("path contains an empty element name")
		}
	}
	return nil
}
