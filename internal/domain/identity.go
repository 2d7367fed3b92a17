package domain

// Identity is the authenticated caller. The zero value is anonymous.
type Identity struct {
	UserID  int64
	IsAdmin bool
}

func (i Identity) Authenticated() bool {
	return i.UserID > 0
}

// CanView reports whether the caller may read an order owned by ownerID.
func (i Identity) CanView(ownerID int64) bool {
	return i.IsAdmin || (i.Authenticated() && i.UserID == ownerID)
}
