package chat

import "strings"

// keySeparator joins the two participant ids of a conversation key.
const keySeparator = "_"

// ConversationKey derives the identifier for the thread between two users.
// The pair is sorted first, so key(a,b) == key(b,a) and either side of a
// conversation computes the same key.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + keySeparator + b
}

// KeyHasParticipant reports whether uid is one of the two ids the key was
// derived from. It matches on the key's ends rather than splitting, since
// ids themselves may contain the separator character.
func KeyHasParticipant(key, uid string) bool {
	if uid == "" {
		return false
	}
	return strings.HasPrefix(key, uid+keySeparator) || strings.HasSuffix(key, keySeparator+uid)
}

// OtherParticipant returns the id on the opposite side of the key from uid,
// or "" if uid is not a participant.
func OtherParticipant(key, uid string) string {
	if strings.HasPrefix(key, uid+keySeparator) {
		return strings.TrimPrefix(key, uid+keySeparator)
	}
	if strings.HasSuffix(key, keySeparator+uid) {
		return strings.TrimSuffix(key, keySeparator+uid)
	}
	return ""
}
