package auth

import "strings"

// CredentialName names a slot in the inbound credential bag
type CredentialName string

const (
	CredentialAdminToken       CredentialName = "admin_token"
	CredentialSupplierToken    CredentialName = "supplier_token"
	CredentialBuyerToken       CredentialName = "buyer_token"
	CredentialFederatedSession CredentialName = "federated_session"
)

// GetAllCredentialNames returns every slot in resolution order
func GetAllCredentialNames() []CredentialName {
	return []CredentialName{
		CredentialAdminToken,
		CredentialSupplierToken,
		CredentialBuyerToken,
		CredentialFederatedSession,
	}
}

// Credentials is the bag of artifacts a request carried. The zero value
// is an empty bag.
type Credentials struct {
	values map[CredentialName]string
}

// NewCredentials builds a bag from name/value pairs, blank values are dropped
func NewCredentials(values map[CredentialName]string) Credentials {
	c := Credentials{}
	for name, value := range values {
		c.Set(name, value)
	}
	return c
}

// Set stores a value. Setting a blank value removes the slot.
func (c *Credentials) Set(name CredentialName, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		if c.values != nil {
			delete(c.values, name)
		}
		return
	}
	if c.values == nil {
		c.values = make(map[CredentialName]string, 4)
	}
	c.values[name] = value
}

// Get returns the value of a slot
func (c Credentials) Get(name CredentialName) (string, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Has reports whether a slot carries a value
func (c Credentials) Has(name CredentialName) bool {
	_, ok := c.values[name]
	return ok
}

// Len returns the number of populated slots
func (c Credentials) Len() int {
	return len(c.values)
}

// OtherRoleCredentials lists the token slots a login for role must drop
// so a single actor stays authenticated per client.
func OtherRoleCredentials(role ActorRole) []CredentialName {
	out := make([]CredentialName, 0, 3)
	for _, r := range GetAllRoles() {
		if r == role {
			continue
		}
		out = append(out, r.Credential())
	}
	return append(out, CredentialFederatedSession)
}
