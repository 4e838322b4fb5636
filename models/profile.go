package models

// Profile is the directory record for one user, refreshed on every sign-in.
// PushToken may be empty when the user has no registered delivery target.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photo_url"`
	PushToken   string `json:"push_token"`
	LastSeen    int64  `json:"last_seen"`
}
