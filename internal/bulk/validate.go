package bulk

import "fmt"

// InvalidItem pairs a rejected item with its original index and the reason
// it was rejected.
type InvalidItem[T any] struct {
	Index  int
	Item   T
	Reason string
}

// ValidateData partitions items into valid and invalid without mutating or
// persisting anything. An item is invalid when a required field is absent
// or nil in its field map, or when the custom check rejects it.
func ValidateData[T any](items []T, required []string, fields func(T) map[string]interface{}, custom func(T) error) (valid []T, invalid []InvalidItem[T]) {
	for i, item := range items {
		reason := ""

		if len(required) > 0 && fields != nil {
			m := fields(item)
			for _, name := range required {
				if v, ok := m[name]; !ok || v == nil {
					reason = fmt.Sprintf("missing required field '%s'", name)
					break
				}
			}
		}

		if reason == "" && custom != nil {
			if err := custom(item); err != nil {
				reason = err.Error()
			}
		}

		if reason != "" {
			invalid = append(invalid, InvalidItem[T]{Index: i, Item: item, Reason: reason})
			continue
		}
		valid = append(valid, item)
	}
	return valid, invalid
}
