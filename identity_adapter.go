package identity

type accountIdentity struct {
	id        string
	username  string
	email     string
	role      string
	profileID string
	status    AccountStatus
}

func (a accountIdentity) ID() string {
	return a.id
}

func (a accountIdentity) Username() string {
	return a.username
}

func (a accountIdentity) Email() string {
	return a.email
}

func (a accountIdentity) Role() string {
	return a.role
}

func (a accountIdentity) ProfileID() string {
	return a.profileID
}

func (a accountIdentity) Status() AccountStatus {
	if a.status == "" {
		return AccountStatusActive
	}
	return a.status
}

var _ Identity = accountIdentity{}
