package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)
	return NewPostgresStoreFromDB(db), mock
}

func TestToIdentityRecord(t *testing.T) {
	row, assign, ignored := toIdentityRecord("u1", map[string]string{
		"name":         "Rahul Kumar Singh",
		"aadharNumber": "123456789012",
		"photo":        "ignored",
	})

	assert.Equal(t, "u1", row.UserID)
	assert.Equal(t, "Rahul Kumar Singh", row.Name)
	assert.Equal(t, "123456789012", row.AadharNumber)
	assert.Empty(t, row.DOB)
	assert.Equal(t, []string{"aadhar_number", "name"}, assign)
	assert.Equal(t, []string{"photo"}, ignored)
}

func TestIdentityRecordResult(t *testing.T) {
	row := IdentityRecord{UserID: "u1", Gender: "MALE", VID: "12345678901"}

	got := row.Result().Map()

	assert.Len(t, got, 6)
	assert.Equal(t, "MALE", got["gender"])
	assert.Equal(t, "12345678901", got["vid"])
	assert.Equal(t, "", got["name"])
	assert.Equal(t, "aadhar_data", IdentityRecord{}.TableName())
}

func TestPostgresStoreMergeUpdatesOnlyGivenColumns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "aadhar_data" ("user_id","name","dob","gender","aadhar_number","vid","issue_date","created_at","updated_at")`) +
		`.*` + regexp.QuoteMeta(`ON CONFLICT ("user_id") DO UPDATE SET "name"="excluded"."name","updated_at"="excluded"."updated_at"`)).
		WithArgs("u1", "Rahul Kumar Singh", "", "", "", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("user_id") DO UPDATE SET "dob"="excluded"."dob","updated_at"="excluded"."updated_at"`)).
		WithArgs("u1", "", "05/11/1998", "", "", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Merge(ctx, "u1", map[string]string{"name": "Rahul Kumar Singh"}))
	require.NoError(t, s.Merge(ctx, "u1", map[string]string{"dob": "05/11/1998"}))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreMergeRejectsEmptyID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.Merge(context.Background(), "", map[string]string{"name": "x"})

	assert.ErrorIs(t, err, ErrEmptyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGet(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"user_id", "name", "dob", "gender", "aadhar_number", "vid", "issue_date", "created_at", "updated_at"}).
		AddRow("u1", "Rahul Kumar Singh", "05/11/1998", "MALE", "123456789012", "", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "aadhar_data" WHERE user_id = $1`)).
		WillReturnRows(rows)

	got, err := s.Get(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"name":         "Rahul Kumar Singh",
		"dob":          "05/11/1998",
		"gender":       "MALE",
		"aadharNumber": "123456789012",
		"vid":          "",
		"issueDate":    "",
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "aadhar_data" WHERE user_id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err := s.Get(context.Background(), "nobody")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
