package chat

import "testing"

func TestConversationKeySymmetry(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"u2", "u1"},
		{"alice", "bob"},
		{"zed", "amy"},
	}
	for _, p := range pairs {
		if got, want := ConversationKey(p[0], p[1]), ConversationKey(p[1], p[0]); got != want {
			t.Fatalf("key(%s,%s)=%q != key(%s,%s)=%q", p[0], p[1], got, p[1], p[0], want)
		}
	}
}

func TestConversationKeyDeterministic(t *testing.T) {
	if got := ConversationKey("u1", "u2"); got != "u1_u2" {
		t.Fatalf("got %q, want %q", got, "u1_u2")
	}
	if got := ConversationKey("u2", "u1"); got != "u1_u2" {
		t.Fatalf("got %q, want %q", got, "u1_u2")
	}
}

func TestConversationKeyDistinctPairs(t *testing.T) {
	a := ConversationKey("u1", "u2")
	b := ConversationKey("u1", "u3")
	c := ConversationKey("u2", "u3")
	if a == b || a == c || b == c {
		t.Fatalf("expected distinct keys, got %q %q %q", a, b, c)
	}
}

func TestKeyHasParticipant(t *testing.T) {
	key := ConversationKey("u1", "u2")
	tests := []struct {
		uid  string
		want bool
	}{
		{"u1", true},
		{"u2", true},
		{"u3", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := KeyHasParticipant(key, tt.uid); got != tt.want {
			t.Fatalf("KeyHasParticipant(%q, %q)=%v want %v", key, tt.uid, got, tt.want)
		}
	}
}

func TestOtherParticipant(t *testing.T) {
	key := ConversationKey("u1", "u2")
	if got := OtherParticipant(key, "u1"); got != "u2" {
		t.Fatalf("got %q want u2", got)
	}
	if got := OtherParticipant(key, "u2"); got != "u1" {
		t.Fatalf("got %q want u1", got)
	}
	if got := OtherParticipant(key, "u3"); got != "" {
		t.Fatalf("got %q want empty", got)
	}
}
