package links

import "fmt"

// ExtractorError reports an extractor that cannot be constructed.
type ExtractorError struct {
	Name    string
	Message string
}

func (e *ExtractorError) Error() string {
	return fmt.Sprintf("extractor error: %s: %q", e.Message, e.Name)
}
