package models

import "testing"

func TestChatValidate(t *testing.T) {
	cases := []struct {
		name  string
		chat  Chat
		owner string
		want  error
	}{
		{
			name:  "valid private",
			chat:  Chat{Kind: ChatPrivate, Participants: []string{"a", "b"}},
			owner: "a",
		},
		{
			name:  "valid group",
			chat:  Chat{Kind: ChatGroup, Name: "Go 101", Participants: []string{"t", "s"}},
			owner: "t",
		},
		{
			name: "private with group fields",
			chat: Chat{Kind: ChatPrivate, Name: "x", Participants: []string{"a", "b"}},
			want: ErrPrivateHasGroup,
		},
		{
			name: "group without name",
			chat: Chat{Kind: ChatGroup, Participants: []string{"t"}},
			want: ErrGroupNeedsName,
		},
		{
			name: "unknown kind",
			chat: Chat{Kind: "broadcast", Participants: []string{"a"}},
			want: ErrBadKind,
		},
		{
			name: "no participants",
			chat: Chat{Kind: ChatPrivate},
			want: ErrNoParticipants,
		},
		{
			name:  "owner not a participant",
			chat:  Chat{Kind: ChatPrivate, Participants: []string{"a", "b"}},
			owner: "c",
			want:  ErrMissingOwner,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.chat.Validate(tc.owner); err != tc.want {
				t.Fatalf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCounterpart(t *testing.T) {
	c := Chat{Kind: ChatPrivate, Participants: []string{"alice", "bob"}}
	if got := c.Counterpart("alice"); got != "bob" {
		t.Fatalf("Counterpart(alice) = %q, want bob", got)
	}
	if got := c.Counterpart("bob"); got != "alice" {
		t.Fatalf("Counterpart(bob) = %q, want alice", got)
	}
	if got := c.Counterpart("carol"); got != "alice" {
		t.Fatalf("Counterpart(outsider) = %q, want first participant", got)
	}
}

func TestPreview(t *testing.T) {
	cases := []struct {
		typ  MessageType
		text string
		want string
	}{
		{MessageText, "hello", "hello"},
		{MessageImage, "", "📷 Image"},
		{MessageFile, "", "📎 File"},
		{MessageVideo, "", "🎥 Video"},
		{MessageType("voice"), "", "🎤 Voice"},
	}
	for _, tc := range cases {
		if got := Preview(tc.typ, tc.text); got != tc.want {
			t.Fatalf("Preview(%q) = %q, want %q", tc.typ, got, tc.want)
		}
	}
}
