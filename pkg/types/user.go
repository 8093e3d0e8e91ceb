package types

// UserRecord is one entry of the user list. Only Username matters to
// provisioning; the remaining fields are carried for the migrate command
// and are decoded leniently by the users package.
type UserRecord struct {
	Username string `json:"username" yaml:"username" toml:"username"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty" toml:"email,omitempty"`
	FullName string `json:"full_name,omitempty" yaml:"full_name,omitempty" toml:"full_name,omitempty"`
	IsPublic bool   `json:"isPublic,omitempty" yaml:"isPublic,omitempty" toml:"isPublic,omitempty"`
}

// Usernames returns the usernames in list order.
func Usernames(users []UserRecord) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}
