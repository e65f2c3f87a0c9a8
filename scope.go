package socialconnect

import "strings"

// ScopeSet is a provider's scope policy: which scopes each Permission
// requests and how they are joined on the wire.
type ScopeSet struct {
	// AuthenticateOnly is requested for PermissionAuthenticateOnly.
	AuthenticateOnly []string
	// Default is requested for PermissionDefault, PermissionAll and unset permissions.
	Default []string
	// Separator joins the scopes, typically "," or "+".
	Separator string
}

// ResolveScope turns a permission into the scope string passed to Strategy.SetScope.
// PermissionCustom requires cfg.CustomPermissions and fails with ErrInvalidConfig
// without it.
func ResolveScope(p Permission, cfg OAuthConfig, set ScopeSet) (string, error) {
	var scopes []string
	switch p {
	case PermissionAuthenticateOnly:
		scopes = set.AuthenticateOnly
	case PermissionCustom:
		scopes = cfg.CustomScopes()
		if len(scopes) == 0 {
			return "", newAuthError(ErrKindInvalidConfig, cfg.ID, "", "custom permission requires custom permissions to be configured", nil)
		}
	default:
		scopes = set.Default
	}
	return strings.Join(scopes, set.Separator), nil
}
