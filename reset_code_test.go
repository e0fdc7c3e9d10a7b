package identity

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureMailer struct {
	mu   sync.Mutex
	to   string
	body string
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = to
	m.body = body
	return nil
}

func TestGenerateResetCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateResetCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestResetCodeIssue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	seedAccount(t, repo, RolePatient, "karim", "karim@example.com")

	svc := NewResetCodeService(repo).WithMailer(&captureMailer{})

	code, err := svc.Issue(context.Background(), "karim@example.com")
	require.NoError(t, err)
	require.Len(t, code, 6)

	account, err := repo.Accounts().FindByEmail(context.Background(), "karim@example.com")
	require.NoError(t, err)
	assert.Equal(t, code, account.ResetCode)
	require.NotNil(t, account.ResetCodeExpires)
	assert.WithinDuration(t, time.Now().Add(ResetCodeTTL), *account.ResetCodeExpires, time.Minute)

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Issue(context.Background(), "missing@example.com")
		assert.True(t, IsNotFoundError(err))
	})
}

func TestResetCodeVerifyDoesNotConsume(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	seedAccount(t, repo, RolePatient, "karim", "karim@example.com")

	svc := NewResetCodeService(repo).WithMailer(&captureMailer{})

	code, err := svc.Issue(context.Background(), "karim@example.com")
	require.NoError(t, err)

	// Verify is repeatable; it never clears the code. Two callers holding
	// the same code both see it as valid until one of them consumes it.
	for i := 0; i < 3; i++ {
		ok, err := svc.Verify(context.Background(), "karim@example.com", code)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := svc.Verify(context.Background(), "karim@example.com", "000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetCodeExpiry(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	seedAccount(t, repo, RolePatient, "karim", "karim@example.com")

	current := time.Now()
	svc := NewResetCodeService(repo).
		WithMailer(&captureMailer{}).
		WithClock(func() time.Time { return current })

	code, err := svc.Issue(context.Background(), "karim@example.com")
	require.NoError(t, err)

	ok, err := svc.Verify(context.Background(), "karim@example.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	current = current.Add(ResetCodeTTL + time.Minute)

	ok, err = svc.Verify(context.Background(), "karim@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok)

	err = svc.Consume(context.Background(), "karim@example.com", code, "new-password-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset code")
}

func TestResetCodeConsume(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	seedAccount(t, repo, RolePatient, "karim", "karim@example.com")

	svc := NewResetCodeService(repo).WithMailer(&captureMailer{})

	code, err := svc.Issue(context.Background(), "karim@example.com")
	require.NoError(t, err)

	err = svc.Consume(context.Background(), "karim@example.com", code, "new-password-123")
	require.NoError(t, err)

	account, err := repo.Accounts().FindByEmail(context.Background(), "karim@example.com")
	require.NoError(t, err)
	assert.NoError(t, ComparePasswordAndHash("new-password-123", account.PasswordHash))
	assert.Empty(t, account.ResetCode)
	assert.Nil(t, account.ResetCodeExpires)

	t.Run("consumed code is single use", func(t *testing.T) {
		err := svc.Consume(context.Background(), "karim@example.com", code, "another-password")
		require.Error(t, err)

		ok, err := svc.Verify(context.Background(), "karim@example.com", code)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong code leaves credential untouched", func(t *testing.T) {
		code, err := svc.Issue(context.Background(), "karim@example.com")
		require.NoError(t, err)
		require.NotEmpty(t, code)

		err = svc.Consume(context.Background(), "karim@example.com", "000000", "hijack-password")
		require.Error(t, err)

		account, err := repo.Accounts().FindByEmail(context.Background(), "karim@example.com")
		require.NoError(t, err)
		assert.NoError(t, ComparePasswordAndHash("new-password-123", account.PasswordHash))
		assert.Equal(t, code, account.ResetCode)
	})
}

func TestResetCodeConsumeEmitsActivity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepositoryManager(db)
	account := seedAccount(t, repo, RolePatient, "karim", "karim@example.com")

	var events []ActivityEvent
	sink := ActivitySinkFunc(func(_ context.Context, evt ActivityEvent) error {
		events = append(events, evt)
		return nil
	})

	svc := NewResetCodeService(repo).
		WithMailer(&captureMailer{}).
		WithActivitySink(sink)

	code, err := svc.Issue(context.Background(), "karim@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.Consume(context.Background(), "karim@example.com", code, "new-password-123"))

	require.Len(t, events, 1)
	assert.Equal(t, ActivityEventPasswordResetSuccess, events[0].EventType)
	assert.Equal(t, account.ID.String(), events[0].AccountID)
}
