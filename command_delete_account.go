package identity

import (
	"context"
	"database/sql"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeleteAccountMessage struct {
	AccountID string `json:"account_id"`
}

func (e DeleteAccountMessage) Type() string { return "account.delete" }

type DeleteAccountHandler struct {
	repo         RepositoryManager
	activitySink ActivitySink
	logger       Logger
}

func NewDeleteAccountHandler(repo RepositoryManager) *DeleteAccountHandler {
	return &DeleteAccountHandler{
		repo:         repo,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
}

func (h *DeleteAccountHandler) WithActivitySink(sink ActivitySink) *DeleteAccountHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *DeleteAccountHandler) WithLogger(l Logger) *DeleteAccountHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

// Execute removes the account and every dependent row in one transaction.
// Deletion order respects foreign key dependencies; on any failure the
// account and all satellite data remain exactly as before the call.
func (h *DeleteAccountHandler) Execute(ctx context.Context, event DeleteAccountMessage) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteAccountHandler) execute(ctx context.Context, event DeleteAccountMessage) (int64, error) {
	var affected int64
	var accountID uuid.UUID

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByIdentifierTx(ctx, tx, event.AccountID)
		if err != nil {
			if IsNotFoundError(err) {
				return ErrAccountNotFound.WithMetadata(map[string]any{
					"account_id": event.AccountID,
				})
			}
			return err
		}
		accountID = account.ID

		patientID, doctorID, err := h.satelliteIDs(ctx, tx, account.ID)
		if err != nil {
			return err
		}

		steps := h.cascadeSteps(account.ID, patientID, doctorID)
		for _, step := range steps {
			n, err := step(ctx, tx)
			if err != nil {
				return err
			}
			affected += n
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return 0, richErr
		}
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "account deletion transaction failed")
	}

	h.recordDeletion(ctx, accountID)

	return affected, nil
}

type cascadeStep func(ctx context.Context, tx bun.Tx) (int64, error)

// cascadeSteps builds the strict deletion order: reviews, appointments,
// working hours, consultation-type links, languages, insurance links,
// addresses, then the satellite rows, finally the account itself.
func (h *DeleteAccountHandler) cascadeSteps(accountID uuid.UUID, patientID, doctorID *uuid.UUID) []cascadeStep {
	steps := []cascadeStep{}

	if patientID != nil {
		steps = append(steps, h.deleteWhere((*Review)(nil), "patient_id = ?", *patientID))
	}
	if doctorID != nil {
		steps = append(steps, h.deleteWhere((*Review)(nil), "doctor_id = ?", *doctorID))
	}
	if patientID != nil {
		steps = append(steps, h.deleteWhere((*Appointment)(nil), "patient_id = ?", *patientID))
	}
	if doctorID != nil {
		id := *doctorID
		steps = append(steps,
			h.deleteWhere((*Appointment)(nil), "doctor_id = ?", id),
			h.deleteWhere((*WorkingHour)(nil), "doctor_id = ?", id),
			h.deleteWhere((*DoctorConsultationType)(nil), "doctor_id = ?", id),
			h.deleteWhere((*DoctorLanguage)(nil), "doctor_id = ?", id),
			h.deleteWhere((*DoctorMutuelle)(nil), "doctor_id = ?", id),
			h.deleteDoctorAddresses(id),
		)
	}
	if patientID != nil {
		steps = append(steps, h.deleteWhere((*Patient)(nil), "id = ?", *patientID))
	}
	if doctorID != nil {
		steps = append(steps, h.deleteWhere((*Doctor)(nil), "id = ?", *doctorID))
	}
	steps = append(steps,
		h.deleteWhere((*Admin)(nil), "account_id = ?", accountID),
		h.deleteWhere((*Account)(nil), "id = ?", accountID),
	)

	return steps
}

func (h *DeleteAccountHandler) deleteWhere(model any, where string, arg any) cascadeStep {
	return func(ctx context.Context, tx bun.Tx) (int64, error) {
		res, err := tx.NewDelete().
			Model(model).
			Where(where, arg).
			Exec(ctx)
		if err != nil {
			return 0, wrapStorageError(err, "cascade delete failed")
		}
		return rowsAffected(res), nil
	}
}

// deleteDoctorAddresses removes the link rows first, then any address rows
// left unreferenced by other doctors.
func (h *DeleteAccountHandler) deleteDoctorAddresses(doctorID uuid.UUID) cascadeStep {
	return func(ctx context.Context, tx bun.Tx) (int64, error) {
		var addressIDs []uuid.UUID
		err := tx.NewSelect().
			Model((*DoctorAddress)(nil)).
			Column("address_id").
			Where("doctor_id = ?", doctorID).
			Scan(ctx, &addressIDs)
		if err != nil {
			return 0, wrapStorageError(err, "failed to collect doctor addresses")
		}

		res, err := tx.NewDelete().
			Model((*DoctorAddress)(nil)).
			Where("doctor_id = ?", doctorID).
			Exec(ctx)
		if err != nil {
			return 0, wrapStorageError(err, "failed to delete doctor address links")
		}
		affected := rowsAffected(res)

		if len(addressIDs) == 0 {
			return affected, nil
		}

		res, err = tx.NewDelete().
			Model((*Address)(nil)).
			Where("id IN (?)", bun.In(addressIDs)).
			Where("id NOT IN (SELECT address_id FROM doctor_addresses)").
			Exec(ctx)
		if err != nil {
			return 0, wrapStorageError(err, "failed to delete orphaned addresses")
		}

		return affected + rowsAffected(res), nil
	}
}

func (h *DeleteAccountHandler) satelliteIDs(ctx context.Context, tx bun.Tx, accountID uuid.UUID) (patientID, doctorID *uuid.UUID, err error) {
	patient := &Patient{}
	err = tx.NewSelect().
		Model(patient).
		Column("id").
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if err == nil {
		patientID = &patient.ID
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, wrapStorageError(err, "failed to look up patient profile")
	}

	doctor := &Doctor{}
	err = tx.NewSelect().
		Model(doctor).
		Column("id").
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if err == nil {
		doctorID = &doctor.ID
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, wrapStorageError(err, "failed to look up doctor profile")
	}

	return patientID, doctorID, nil
}

func (h *DeleteAccountHandler) recordDeletion(ctx context.Context, accountID uuid.UUID) {
	sink := normalizeActivitySink(h.activitySink)
	err := sink.Record(ctx, ActivityEvent{
		EventType: ActivityEventAccountDeleted,
		Actor:     ActorRef{Type: "system"},
		AccountID: accountID.String(),
	})
	if err != nil {
		h.logger.Warn("delete account activity sink error: %v", err)
	}
}
