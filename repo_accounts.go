package onboard

import (
	"context"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Accounts interface {
	repository.Repository[*Account]

	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	Save(ctx context.Context, record *Account) (*Account, error)
	SaveTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return a.FindByUsernameTx(ctx, a.db, username)
}

func (a *accounts) FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error) {
	return a.findByColumn(ctx, tx, "username", strings.TrimSpace(username))
}

func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *accounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.findByColumn(ctx, tx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (a *accounts) findByColumn(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

// Save inserts records without a persisted identity and updates records whose
// ID matches an existing row. A new record whose username or email collides
// with another account is rejected by the unique indexes, never merged into
// the existing row; those rejections come back as the domain conflict errors
// so the registration loop can react to the violated column.
func (a *accounts) Save(ctx context.Context, record *Account) (*Account, error) {
	return a.SaveTx(ctx, a.db, record)
}

func (a *accounts) SaveTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	isNew := record.ID == uuid.Nil
	prepareAccountDefaults(record)

	if !isNew {
		if _, ferr := a.findByID(ctx, tx, record.ID); ferr == nil {
			saved, err := a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
			if err != nil {
				return nil, translateUniqueViolation(err)
			}
			return saved, nil
		} else if !repository.IsRecordNotFound(ferr) && !goerrors.IsNotFound(ferr) {
			return nil, ferr
		}
		// preassigned ID (e.g. hashid derived) with no row yet: insert
	}

	saved, err := a.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		return nil, translateUniqueViolation(err)
	}

	return saved, nil
}

func (a *accounts) findByID(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if len(record.Authorities) == 0 {
		record.GrantAuthority(AuthorityUser)
	}
}

// translateUniqueViolation maps driver specific unique key errors to the
// domain conflicts. The driver error may arrive wrapped in a rich error whose
// own message says nothing about the constraint, so every error in the chain
// is inspected. Covers sqlite and postgres phrasing.
func translateUniqueViolation(err error) error {
	for cause := err; cause != nil; cause = errors.Unwrap(cause) {
		msg := cause.Error()
		unique := strings.Contains(msg, "UNIQUE constraint failed") ||
			strings.Contains(msg, "duplicate key value violates unique constraint")
		if !unique {
			continue
		}

		if strings.Contains(msg, "email") {
			return ErrEmailAlreadyTaken
		}
		if strings.Contains(msg, "username") {
			return ErrUsernameTaken
		}

		return goerrors.Wrap(err, goerrors.CategoryConflict, "unique constraint violated")
	}

	return err
}

type Roles interface {
	repository.Repository[*Role]

	GetByAuthority(ctx context.Context, authority string) (*Role, error)
	GetByAuthorityTx(ctx context.Context, tx bun.IDB, authority string) (*Role, error)
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "authority"
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
	}
}

func (r *roles) GetByAuthority(ctx context.Context, authority string) (*Role, error) {
	return r.GetByAuthorityTx(ctx, r.db, authority)
}

func (r *roles) GetByAuthorityTx(ctx context.Context, tx bun.IDB, authority string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.authority = ?", authority).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"authority": authority,
				})
		}
		return nil, err
	}

	return record, nil
}
