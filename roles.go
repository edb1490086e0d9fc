package auth

// ActorRole is the role an actor was created with. It never changes.
type ActorRole string

const (
	// RoleBuyer browses the marketplace and sends inquiries
	RoleBuyer ActorRole = "buyer"
	// RoleSupplier lists products and answers inquiries once approved
	RoleSupplier ActorRole = "supplier"
	// RoleAdmin moderates suppliers and resolves extension requests
	RoleAdmin ActorRole = "admin"
)

// IsValid checks if the role is one of the predefined roles
func (r ActorRole) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSupplier, RoleAdmin:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer
func (r ActorRole) String() string {
	return string(r)
}

// Credential returns the name of the credential slot that carries a token
// for this role.
func (r ActorRole) Credential() CredentialName {
	switch r {
	case RoleAdmin:
		return CredentialAdminToken
	case RoleSupplier:
		return CredentialSupplierToken
	case RoleBuyer:
		return CredentialBuyerToken
	default:
		return ""
	}
}

// RequiresEmailVerification reports whether new accounts of this role
// start unverified. Admins are provisioned out of band.
func (r ActorRole) RequiresEmailVerification() bool {
	return r == RoleBuyer || r == RoleSupplier
}

// GetAllRoles returns all roles in credential precedence order
func GetAllRoles() []ActorRole {
	return []ActorRole{
		RoleAdmin,
		RoleSupplier,
		RoleBuyer,
	}
}

// ParseRole safely parses a string into an ActorRole
func ParseRole(roleStr string) (ActorRole, bool) {
	role := ActorRole(roleStr)
	return role, role.IsValid()
}
