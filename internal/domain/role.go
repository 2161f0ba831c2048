package domain

// Role constants define the allowed account types.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"
)

// DefaultLanguage is applied when registration omits a preferred language.
const DefaultLanguage = "en"

// IsValidRole checks whether the given role string is a known account type.
func IsValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// CanSelfRegister reports whether an account of this type may be created
// through the public registration endpoint. Admin accounts cannot.
func CanSelfRegister(role string) bool {
	return role == RoleCustomer || role == RoleSeller
}
