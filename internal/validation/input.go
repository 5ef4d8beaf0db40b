package validation

import (
	"fmt"
	"strconv"
	"strings"
)

// Input length limits to prevent resource exhaustion
const (
	MaxNameLength    = 255
	MaxMessageLength = 100000 // 100KB for message content
	MaxQueryLength   = 512
	MaxURLLength     = 2048 // Standard browser URL limit
)

// ValidateMessageContent validates message content length.
// Empty content is rejected; the server requires a body on every message.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message content cannot be empty")
	}

	// Use byte length for message content as it's transmitted as UTF-8
	length := len(content)
	if length > MaxMessageLength {
		return fmt.Errorf("message content exceeds maximum size of %d bytes (got %d)", MaxMessageLength, length)
	}

	return nil
}

// ValidateSearchQuery validates a search query length.
func ValidateSearchQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("search query cannot be empty")
	}
	if len(q) > MaxQueryLength {
		return fmt.Errorf("search query exceeds maximum length of %d characters (got %d)", MaxQueryLength, len(q))
	}
	return nil
}

// ParsePositiveInt parses a string as a positive integer ID.
// Returns error if the value is not a positive integer or exceeds int32 range.
func ParsePositiveInt(s string, fieldName string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	id64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", fieldName, err)
	}
	if id64 <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", fieldName)
	}
	return int(id64), nil
}
