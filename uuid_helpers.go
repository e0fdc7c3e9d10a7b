package identity

// HasAccountUUID reports whether Session.GetUserUUID will succeed.
func HasAccountUUID(session Session) bool {
	if session == nil {
		return false
	}
	_, err := session.GetUserUUID()
	return err == nil
}
