package domain

// ActorContext identifies who is performing a mutation. A nil *ActorContext
// (or IsSystem) means a system/import context: writes are authoritative and
// per-actor validation is skipped, exactly like a reviewer's.
type ActorContext struct {
	UserID     string
	Username   string
	Email      string
	FirstName  string
	LastName   string
	IsReviewer bool
	IsSystem   bool
}

// BypassesProvisional reports whether edits by this actor are written
// directly as authoritative data.
func (a *ActorContext) BypassesProvisional() bool {
	return a == nil || a.IsSystem || a.IsReviewer
}

// ID returns the acting user id, or "" for a system context.
func (a *ActorContext) ID() string {
	if a == nil {
		return ""
	}
	return a.UserID
}
