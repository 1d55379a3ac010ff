package models

// Identity is the authenticated user's minimal profile.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	AvatarURL   string `json:"photo,omitempty"`
}

// Initial returns the first letter of the display name, or "U".
func (i Identity) Initial() string {
	for _, r := range i.DisplayName {
		return string(r)
	}
	return "U"
}
