package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	xerrors "Attest-Resolver/internal/errors"
	"Attest-Resolver/internal/storage"
)

const (
	selectStateSQL     = `SELECT state_value FROM resolver_state WHERE state_key = ? FOR UPDATE`
	selectStateReadSQL = `SELECT state_value FROM resolver_state WHERE state_key = ?`
	upsertStateSQL     = `INSERT INTO resolver_state (state_key, state_value, updated_at) VALUES (?, ?, ?)
    ON DUPLICATE KEY UPDATE state_value = VALUES(state_value), updated_at = VALUES(updated_at)`
)

// MySQL 错误码：死锁与锁等待超时都意味着事务需要整体重试。
const (
	errLockDeadlock    = 1213
	errLockWaitTimeout = 1205
)

// Store 使用 resolver_state 表保存解析器状态。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ storage.Store            = (*Store)(nil)
	_ storage.ReadOnlyBeginner = (*Store)(nil)
)

// Open 建立连接池并执行嵌入的迁移脚本。
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 MySQL 存储失败")
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行 MySQL 迁移失败")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Begin 开启一个 SQL 事务。
func (s *Store) Begin(ctx context.Context) (storage.Txn, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, translate(err, "开启事务失败")
	}
	return &txn{tx: tx, now: s.now}, nil
}

// BeginReadOnly 开启只读事务，读取不加行锁。
func (s *Store) BeginReadOnly(ctx context.Context) (storage.Txn, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, translate(err, "开启只读事务失败")
	}
	return &txn{tx: tx, now: s.now, readOnly: true}, nil
}

// Close 关闭底层连接池。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type txn struct {
	tx       *sql.Tx
	now      func() time.Time
	readOnly bool
}

func (t *txn) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := selectStateSQL
	if t.readOnly {
		query = selectStateReadSQL
	}
	var value []byte
	err := t.tx.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translate(err, fmt.Sprintf("读取状态 %s 失败", key))
	}
	return value, true, nil
}

func (t *txn) Put(ctx context.Context, key string, value []byte) error {
	if t.readOnly {
		return xerrors.New(xerrors.CodeStorageFailure, fmt.Sprintf("只读事务不能写入 %s", key), xerrors.WithRetryable(false))
	}
	if _, err := t.tx.ExecContext(ctx, upsertStateSQL, key, value, t.now().Unix()); err != nil {
		return translate(err, fmt.Sprintf("写入状态 %s 失败", key))
	}
	return nil
}

func (t *txn) Commit(_ context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return translate(err, "提交事务失败")
	}
	return nil
}

func (t *txn) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return translate(err, "回滚事务失败")
	}
	return nil
}

func translate(err error, message string) error {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errLockDeadlock, errLockWaitTimeout:
			return xerrors.Wrap(xerrors.CodeConflict, err, message)
		}
	}
	return xerrors.Wrap(xerrors.CodeStorageFailure, err, message)
}
