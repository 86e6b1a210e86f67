package users

import (
	"strings"

	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
)

// Avatar palette for users without a stored avatar. The index is a
// stable function of the user id (or email), so the same user always
// renders the same color across sessions.
var palette = []string{
	"blue", "green", "purple", "pink",
	"red", "yellow", "indigo", "teal",
}

func AvatarColor(key string) string {
	if key == "" {
		key = "user"
	}
	sum := 0
	for _, ch := range key {
		sum += int(ch)
	}
	return palette[sum%len(palette)]
}

// AvatarColorFor keys the palette on the profile id, falling back to
// the email for records without one.
func AvatarColorFor(p models.Profile) string {
	if p.ID != "" {
		return AvatarColor(p.ID)
	}
	return AvatarColor(p.Email)
}

// AvatarInitial is the single letter rendered inside a fallback avatar.
func AvatarInitial(displayName string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return "U"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}
