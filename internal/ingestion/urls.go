// Package ingestion reads the list of URLs a run should process.
package ingestion

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// InputError represents a failure reading the URL list.
type InputError struct {
	Path    string
	Message string
	Cause   error
}

func (e *InputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("input error for %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("input error for %s: %s", e.Path, e.Message)
}

func (e *InputError) Unwrap() error {
	return e.Cause
}

// ReadURLs returns the distinct non-blank lines of r, trimmed, in the order
// they first appear.
func ReadURLs(r io.Reader) ([]string, error) {
	seen := make(map[string]struct{})
	urls := make([]string, 0)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}

// LoadURLFile reads the URL list at path.
func LoadURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputError{Path: path, Message: "failed to open URL list", Cause: err}
	}
	defer func() { _ = f.Close() }()

	urls, err := ReadURLs(f)
	if err != nil {
		return nil, &InputError{Path: path, Message: "failed to read URL list", Cause: err}
	}
	return urls, nil
}
