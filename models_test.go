package identity_test

import (
	"testing"
	"time"

	identity "github.com/dztabib/identity"
	"github.com/stretchr/testify/assert"
)

func TestAccountStatus(t *testing.T) {
	account := &identity.Account{}
	assert.Equal(t, identity.AccountStatusActive, account.Status())

	now := time.Now()
	account.IsSuspended = true
	account.SuspensionReason = "spam reports"
	account.SuspendedAt = &now
	assert.Equal(t, identity.AccountStatusSuspended, account.Status())

	account.IsSuspended = false
	assert.Equal(t, identity.AccountStatusActive, account.Status())
}
