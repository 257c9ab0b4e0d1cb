package onboard

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories. It also implements UserStore,
// so the flow can sit directly on top of it.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	UserStore
	Accounts() Accounts
	Roles() Roles
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
	roles    Roles
}

var _ UserStore = (*mngr)(nil)

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
		roles:    NewRolesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return m.accounts.FindByUsername(ctx, username)
}

func (m mngr) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return m.accounts.FindByEmail(ctx, email)
}

func (m mngr) Save(ctx context.Context, record *Account) (*Account, error) {
	return m.accounts.Save(ctx, record)
}

func (m mngr) FindRoleByAuthority(ctx context.Context, authority string) (*Role, error) {
	return m.roles.GetByAuthority(ctx, authority)
}
