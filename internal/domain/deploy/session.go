package deploy

// Session is an authenticated handle to the platform.
// It is only ever replaced as a whole, never field by field.
type Session struct {
	// AccessToken is the bearer token returned by the token endpoint.
	AccessToken string
	// InstanceURL is the base URL of the org the token belongs to.
	InstanceURL string
}

// Valid reports whether both halves of the session are present.
// It does not talk to the platform; see the session manager's probe for that.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.InstanceURL != ""
}
