package models

// Credential types carried in the "type" claim and in the stored session record
const (
	SessionTypeUser  = "user"
	SessionTypeAdmin = "admin"
)

// SessionRecord is the value mirrored into the token store for every live credential.
// Its presence is what makes a signed token usable.
type SessionRecord struct {
	UserID string `json:"userId"`
	OpenID string `json:"openid"`
	Type   string `json:"type"`
}

// RequestMeta carries caller metadata for audit trails
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}
