package model

// Credentials hold the API key pair for the lifetime of the process only.
// Both String and GoString mask the values so a stray %v never leaks them into logs.
type Credentials struct {
	APIKey string
	Secret string
}

func (c *Credentials) Complete() bool {
	return c != nil && c.APIKey != "" && c.Secret != ""
}

func (c Credentials) String() string {
	return "Credentials{APIKey:" + mask(c.APIKey) + ", Secret:" + mask(c.Secret) + "}"
}

func (c Credentials) GoString() string {
	return c.String()
}

func mask(s string) string {
	if s == "" {
		return "<empty>"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
