package userrepo_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
	"milsupply/internal/repository/userrepo"
)

func newRepo(t *testing.T) (*userrepo.UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return userrepo.NewUserRepository(sqlx.NewDb(mockDB, "postgres"), 5*time.Second, logger.NewLogger("error")), mock
}

func TestSave_AssignsIDAndTimestamp(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (id, username, password_hash, role, created_at)")).
		WithArgs(sqlmock.AnyArg(), "sklad", "hash", "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := repo.Save(context.Background(), domain.User{Username: "sklad", PasswordHash: "hash", Role: domain.RoleAdmin})

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_DuplicateUsernameIsConflict(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Save(context.Background(), domain.User{Username: "sklad"})

	var conflict *apperror.ConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestFindByUsername(t *testing.T) {
	repo, mock := newRepo(t)
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("sklad").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "created_at"}).
			AddRow("u-1", "sklad", "hash", "admin", created))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	user, err := repo.FindByUsername(context.Background(), "sklad")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
	assert.Equal(t, created, user.CreatedAt)

	_, err = repo.FindByUsername(context.Background(), "ghost")
	var notFound *apperror.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}
