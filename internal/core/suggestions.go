package core

import "strings"

// Suggestions is the backend's polymorphic suggestions field. It is either a
// SuggestionText or a SuggestionList; callers switch on the concrete type.
type Suggestions interface {
	isSuggestions()
}

type (
	SuggestionText string
	SuggestionList []string
)

func (SuggestionText) isSuggestions() {}
func (SuggestionList) isSuggestions() {}

// FlattenSuggestions renders s as plain text. List items become separate
// paragraphs.
func FlattenSuggestions(s Suggestions) string {
	switch v := s.(type) {
	case SuggestionText:
		return string(v)
	case SuggestionList:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return strings.Join(items, "\n\n")
	default:
		return ""
	}
}

// IsEmpty reports whether s carries no displayable text.
func IsEmpty(s Suggestions) bool {
	return strings.TrimSpace(FlattenSuggestions(s)) == ""
}
