package domain

// Actor is the authenticated account performing a request.
type Actor struct {
	ID    string
	Email string
	Roles []Role
}

// HasRole reports whether the actor holds role r.
func (a Actor) HasRole(r Role) bool {
	for _, held := range a.Roles {
		if held == r {
			return true
		}
	}
	return false
}

// RoleForNewUser resolves the role assigned to an internal account created by
// this actor. ADMIN takes precedence over MANAGER when both are held.
func (a Actor) RoleForNewUser() (Role, bool) {
	for _, creator := range []Role{RoleAdmin, RoleManager} {
		if a.HasRole(creator) {
			return creator.Subordinate()
		}
	}
	return "", false
}
