package dummydb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tuzo/core"
	"github.com/trezcool/tuzo/core/engagement"
	"github.com/trezcool/tuzo/core/org"
	"github.com/trezcool/tuzo/core/quest"
	"github.com/trezcool/tuzo/core/user"
	"github.com/trezcool/tuzo/core/wallet"
)

var errNotSupported = errors.New("dummydb: raw SQL is not supported")

type (
	// DB is the in-memory storage used by tests. Its transactor is a no-op:
	// writes apply immediately, so callers relying on rollback must do their
	// guard reads before any mutation (the services do).
	DB struct {
		user       *userTable
		org        *orgTable
		wallet     *walletTable
		quest      *questTable
		engagement *engagementTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	orgTable struct {
		sync.RWMutex
		table       map[string]*org.Organization
		memberships map[string]*org.Membership // userID + ":" + orgID
	}

	walletTable struct {
		sync.RWMutex
		balances map[string]*wallet.Balance      // Account.String()
		ledgers  map[string][]wallet.LedgerEntry // ledger table name
	}

	questTable struct {
		sync.RWMutex
		table map[string]*quest.Quest
	}

	engagementTable struct {
		sync.RWMutex
		table      map[string]*engagement.Engagement
		recipients map[string]*engagement.Recipient // engagementID + ":" + userID
	}
)

var _ core.DB = (*DB)(nil)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		org: &orgTable{
			table:       make(map[string]*org.Organization),
			memberships: make(map[string]*org.Membership),
		},
		wallet: &walletTable{
			balances: make(map[string]*wallet.Balance),
			ledgers:  make(map[string][]wallet.LedgerEntry),
		},
		quest: &questTable{table: make(map[string]*quest.Quest)},
		engagement: &engagementTable{
			table:      make(map[string]*engagement.Engagement),
			recipients: make(map[string]*engagement.Recipient),
		},
	}
	return db, nil
}

func (db *DB) Begin(context.Context) (core.DBTransactor, error) {
	return &dummyTx{}, nil
}

func (db *DB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNotSupported
}

func (db *DB) GetContext(context.Context, interface{}, string, ...interface{}) error {
	return errNotSupported
}

func (db *DB) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return errNotSupported
}

func (db *DB) QueryRowxContext(context.Context, string, ...interface{}) *sqlx.Row {
	return nil
}

func (db *DB) QueryxContext(context.Context, string, ...interface{}) (*sqlx.Rows, error) {
	return nil, errNotSupported
}

type dummyTx struct {
	dummyExec
}

func (t *dummyTx) Commit() error   { return nil }
func (t *dummyTx) Rollback() error { return nil }

type dummyExec struct{}

func (dummyExec) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNotSupported
}

func (dummyExec) GetContext(context.Context, interface{}, string, ...interface{}) error {
	return errNotSupported
}

func (dummyExec) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return errNotSupported
}

func (dummyExec) QueryRowxContext(context.Context, string, ...interface{}) *sqlx.Row {
	return nil
}

func (dummyExec) QueryxContext(context.Context, string, ...interface{}) (*sqlx.Rows, error) {
	return nil, errNotSupported
}
