package models

// Profile is the resolved display identity of a participant. It is
// derived, read-mostly data; lookups that miss produce a deterministic
// fallback instead of an error.
type Profile struct {
	ID          string `bson:"_id,omitempty" json:"id"`
	DisplayName string `bson:"display_name,omitempty" json:"display_name"`
	Email       string `bson:"email,omitempty" json:"email"`
	Role        string `bson:"role,omitempty" json:"role"`
	AvatarURL   string `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`

	// alternate name fields some legacy records carry
	Name     string `bson:"name,omitempty" json:"-"`
	FullName string `bson:"full_name,omitempty" json:"-"`
	Username string `bson:"username,omitempty" json:"-"`
}

func (p Profile) CanCreateGroups() bool {
	return p.Role == "tutor" || p.Role == "admin"
}
