package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devclip/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	cfg := DefaultDBConfig()
	db := NewDBWithConn(sqlx.NewDb(mockDB, "postgres"), cfg)
	t.Cleanup(func() {
		mock.ExpectClose()
		db.Close()
	})
	return db, mock
}

var accountCols = []string{"id", "email", "tier", "balance", "used", "carryover", "is_admin", "refreshed_at", "created_at", "updated_at"}

func accountRow(id uuid.UUID, tier string, balance, used, carryover int64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(accountCols).AddRow(id, "dev@example.com", tier, balance, used, carryover, false, now, now, now)
}

func TestAccountRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewAccountRepository()
	id := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM accounts WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(accountRow(id, "pro", 1000, 0, 0))

	account, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, account.ID)
	assert.Equal(t, models.TierPro, account.Tier)
	assert.Equal(t, int64(1000), account.Balance)

	mock.ExpectQuery(`SELECT .* FROM accounts WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_CreateDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewAccountRepository()

	account := models.NewAccount("dev@example.com", time.Now().UTC())
	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), account)
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Create(context.Background(), account))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Debit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewAccountRepository()
	id := uuid.New()

	debitQuery := `(?s)` + regexp.QuoteMeta(`SET balance = balance - $2, used = used + $2`) + `.*` + regexp.QuoteMeta(`WHERE id = $1 AND balance >= $2`)

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(debitQuery).
			WithArgs(id, int64(3)).
			WillReturnRows(accountRow(id, "free", 47, 3, 0))

		account, err := repo.Debit(context.Background(), id, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(47), account.Balance)
		assert.Equal(t, int64(3), account.Used)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		mock.ExpectQuery(debitQuery).
			WithArgs(id, int64(100)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := repo.Debit(context.Background(), id, 100)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectQuery(debitQuery).
			WithArgs(id, int64(1)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.Debit(context.Background(), id, 1)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("driver error", func(t *testing.T) {
		mock.ExpectQuery(debitQuery).
			WithArgs(id, int64(1)).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.Debit(context.Background(), id, 1)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInsufficientBalance)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Refresh(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewAccountRepository()
	id := uuid.New()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	plan := models.TierPro.Plan()

	mock.ExpectQuery(`UPDATE accounts\s+SET carryover = LEAST`).
		WithArgs(id, "pro", plan.CarryoverCap, plan.MonthlyAllocation, now).
		WillReturnRows(accountRow(id, "pro", 1500, 0, 500))

	account, err := repo.Refresh(context.Background(), id, models.TierPro, plan, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), account.Balance)
	assert.Equal(t, int64(500), account.Carryover)

	mock.ExpectQuery(`UPDATE accounts\s+SET carryover = LEAST`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = repo.Refresh(context.Background(), id, models.TierPro, plan, now)
	assert.ErrorIs(t, err, ErrTierChanged)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_SetPlan(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewAccountRepository()
	id := uuid.New()

	mock.ExpectQuery(`UPDATE accounts\s+SET tier = \$2, balance = \$3`).
		WithArgs(id, "enterprise", int64(10000)).
		WillReturnRows(accountRow(id, "enterprise", 10000, 0, 0))

	account, err := repo.SetPlan(context.Background(), id, models.TierEnterprise, 10000)
	require.NoError(t, err)
	assert.Equal(t, models.TierEnterprise, account.Tier)

	mock.ExpectQuery(`UPDATE accounts\s+SET tier`).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.SetPlan(context.Background(), id, models.TierEnterprise, 10000)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

var apiKeyCols = []string{"id", "account_id", "label", "key_hash", "key_prefix", "created_at", "last_used_at", "revoked_at"}

func TestAPIKeyRepository_GetByHashUsesCache(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewAPIKeyRepository()
	id, accountID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT .* FROM api_keys WHERE key_hash = \$1`).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(apiKeyCols).AddRow(id, accountID, "ci", "abc", "dcp_1234", time.Now(), nil, nil))

	key, err := repo.GetByHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, id, key.ID)
	assert.Nil(t, key.RevokedAt)

	// Second lookup is served from the cache
	key, err = repo.GetByHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, id, key.ID)
	assert.Equal(t, uint64(1), db.GetStats().APIKeyCacheStats.Hits)

	mock.ExpectQuery(`SELECT .* FROM api_keys WHERE key_hash = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrAPIKeyNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepository_RevokeEvictsCache(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewAPIKeyRepository()
	id, accountID := uuid.New(), uuid.New()

	db.apiKeyCache.Set("abc", &models.APIKey{ID: id, AccountID: accountID, KeyHash: "abc"})

	mock.ExpectQuery(`UPDATE api_keys\s+SET revoked_at`).
		WithArgs(id, accountID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"key_hash"}).AddRow("abc"))

	require.NoError(t, repo.Revoke(context.Background(), accountID, id, time.Now()))
	assert.Equal(t, 0, db.apiKeyCache.Len())

	mock.ExpectQuery(`UPDATE api_keys\s+SET revoked_at`).
		WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, repo.Revoke(context.Background(), accountID, id, time.Now()), ErrAPIKeyNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepository_CountActiveAndLastUsed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewAPIKeyRepository()
	id, accountID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM api_keys WHERE account_id = \$1 AND revoked_at IS NULL`).
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountActive(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	mock.ExpectExec(`UPDATE api_keys SET last_used_at`).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateLastUsed(context.Background(), id, time.Now()), ErrAPIKeyNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_InsertBatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUsageRepository()

	records := []*models.UsageRecord{
		{AccountID: uuid.New(), RequestID: "r1", Operation: "json", CreditsCharged: 1},
		{AccountID: uuid.New(), RequestID: "r2", Operation: "explain", CreditsCharged: 1, TokensUsed: 42},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO usage_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO usage_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.InsertBatch(context.Background(), records))
	for _, r := range records {
		assert.NotEqual(t, uuid.Nil, r.ID)
		assert.False(t, r.CreatedAt.IsZero())
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO usage_records`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	assert.Error(t, repo.InsertBatch(context.Background(), records[:1]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_RecordTruncatesSnapshots(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewUsageRepository()

	long := make([]rune, models.SnapshotLimit+50)
	for i := range long {
		long[i] = 'é'
	}
	record := &models.UsageRecord{AccountID: uuid.New(), Operation: "yaml", InputSnapshot: string(long)}

	mock.ExpectExec(`INSERT INTO usage_records`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Record(context.Background(), record))

	assert.Equal(t, models.SnapshotLimit, len([]rune(record.InputSnapshot)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_Health(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	db := NewDBWithConn(sqlx.NewDb(mockDB, "postgres"), DefaultDBConfig())
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	assert.NoError(t, db.Health(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
