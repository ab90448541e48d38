package utils

import "strings"

// TopicMatches reports whether an MQTT topic matches a subscription pattern.
// "+" matches exactly one level, "#" matches the remainder of the topic.
func TopicMatches(topic, pattern string) bool {
	actual := strings.Split(topic, "/")
	parts := strings.Split(pattern, "/")

	if len(parts) > len(actual) {
		return false
	}

	for i, part := range parts {
		switch {
		case part == "#":
			return true
		case part == "+":
			continue
		case part != actual[i]:
			return false
		}
	}

	return len(actual) == len(parts)
}
