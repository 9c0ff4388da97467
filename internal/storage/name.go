package storage

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	maxNameLen = 255

	// tempPrefix marks partially written uploads in the local backend.
	tempPrefix = ".upload-"

	// reservedChars cannot appear in a stored name because smbclient -c
	// would read them as command syntax. CleanName replaces them.
	reservedChars = `";`
)

var reservedReplacer = strings.NewReplacer(`"`, "_", ";", "_")

// CleanName turns a client-supplied upload filename into a storage key.
// Any directory part is dropped, whichever separator the client used.
func CleanName(raw string) (string, error) {
	name := raw
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(reservedReplacer.Replace(name))
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ValidateName checks that name is usable as-is as a flat storage key.
// Unlike CleanName it rejects separators instead of stripping them.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case len(name) > maxNameLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, maxNameLen)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.ContainsAny(name, reservedChars):
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidName, name)
	case strings.HasPrefix(name, tempPrefix):
		return fmt.Errorf("%w: %q uses a reserved prefix", ErrInvalidName, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidName, name)
		}
	}
	return nil
}
