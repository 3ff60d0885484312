package validate

import "strings"

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

func MaxLen(value string, limit int) bool {
	return len(value) <= limit
}
