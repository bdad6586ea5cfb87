package userservice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
	"milsupply/internal/pkg/token"
	"milsupply/internal/repository/memrepo"
	"milsupply/internal/service/userservice"
)

// MockUserRepository é uma implementação mock da interface UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Save(ctx context.Context, user domain.User) (domain.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(domain.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(domain.User), args.Error(1)
}

func newService(repo userservice.UserRepository) *userservice.UserService {
	return userservice.NewService(repo, token.NewService("test-secret", time.Hour), logger.NewLogger("error"))
}

func TestRegister_HashesPasswordAndDefaultsRole(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newService(repo)

	repo.On("Save", mock.Anything, mock.MatchedBy(func(u domain.User) bool {
		return u.Username == "sklad" && u.Role == domain.RoleUser && u.PasswordHash != "" && u.PasswordHash != "s3cret"
	})).Return(domain.User{ID: "u-1", Username: "sklad", Role: domain.RoleUser}, nil)

	user, err := svc.Register(context.Background(), domain.UserRegistration{Username: " sklad ", Password: "s3cret"})

	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	repo.AssertExpectations(t)
}

func TestRegister_Validation(t *testing.T) {
	svc := newService(new(MockUserRepository))

	cases := []domain.UserRegistration{
		{Username: "", Password: "x"},
		{Username: "sklad", Password: ""},
		{Username: "sklad", Password: "x", Role: "general"},
	}
	for _, reg := range cases {
		_, err := svc.Register(context.Background(), reg)
		var validation *apperror.ValidationError
		assert.True(t, errors.As(err, &validation), "registro %+v", reg)
	}
}

func TestRegister_DuplicateIsConflict(t *testing.T) {
	svc := newService(memrepo.NewStore(logger.NewLogger("error")))
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.UserRegistration{Username: "sklad", Password: "a"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, domain.UserRegistration{Username: "sklad", Password: "b"})
	var conflict *apperror.ConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestLoginAndAuthenticate_RoundTrip(t *testing.T) {
	svc := newService(memrepo.NewStore(logger.NewLogger("error")))
	ctx := context.Background()

	user, err := svc.Register(ctx, domain.UserRegistration{Username: "chief", Password: "pa55", Role: domain.RoleAdmin})
	require.NoError(t, err)

	tokenString, err := svc.Login(ctx, "chief", "pa55")
	require.NoError(t, err)

	actor, err := svc.Authenticate("Bearer " + tokenString)
	require.NoError(t, err)
	assert.Equal(t, user.ID, actor.UserID)
	assert.True(t, actor.IsAdmin())
}

func TestLogin_BadCredentialsAreUnauthorized(t *testing.T) {
	svc := newService(memrepo.NewStore(logger.NewLogger("error")))
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.UserRegistration{Username: "chief", Password: "pa55"})
	require.NoError(t, err)

	var unauthorized *apperror.UnauthorizedError
	_, err = svc.Login(ctx, "chief", "wrong")
	assert.True(t, errors.As(err, &unauthorized))

	_, err = svc.Login(ctx, "nobody", "pa55")
	assert.True(t, errors.As(err, &unauthorized))

	_, err = svc.Authenticate("garbage")
	assert.True(t, errors.As(err, &unauthorized))
}

func TestLogin_StorageErrorPassesThrough(t *testing.T) {
	repo := new(MockUserRepository)
	svc := newService(repo)
	dbErr := apperror.NewDBError("failed to find user (DB)", errors.New("connection reset"))

	repo.On("FindByUsername", mock.Anything, "chief").Return(domain.User{}, dbErr)

	_, err := svc.Login(context.Background(), "chief", "pa55")

	var storage *apperror.StorageError
	assert.True(t, errors.As(err, &storage))
}
