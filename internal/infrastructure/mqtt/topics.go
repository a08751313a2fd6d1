package mqtt

import "strings"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "cashcard"

// Topics builds the service's topic names under a common prefix.
//
//	topics := mqtt.NewTopics("cashcard")
//	topics.CardEvent("sarah1", "created") // cashcard/cards/sarah1/created
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix. Trailing slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	return t.prefix
}

// CardEvent returns the topic for one owner's card event.
//
// Example: cashcard/cards/sarah1/updated
func (t Topics) CardEvent(owner, event string) string {
	return t.prefix + "/cards/" + sanitizeLevel(owner) + "/" + sanitizeLevel(event)
}

// OwnerCardEvents matches every card event for one owner.
//
// Pattern: cashcard/cards/sarah1/+
func (t Topics) OwnerCardEvents(owner string) string {
	return t.prefix + "/cards/" + sanitizeLevel(owner) + "/+"
}

// AllCardEvents matches every card event.
//
// Pattern: cashcard/cards/+/+
func (t Topics) AllCardEvents() string {
	return t.prefix + "/cards/+/+"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: cashcard/system/status
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}

// sanitizeLevel keeps a value inside one topic level: separators and
// wildcards are replaced with underscores.
func sanitizeLevel(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', 0:
			return '_'
		default:
			return r
		}
	}, s)
}
