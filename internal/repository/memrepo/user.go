package memrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
)

func (s *Store) Save(ctx context.Context, user domain.User) (domain.User, error) {
	defer s.lock(ctx)()

	for _, existing := range s.state.users {
		if existing.Username == user.Username {
			return domain.User{}, apperror.NewConflictError(fmt.Sprintf("O usuário '%s' já existe.", user.Username))
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	s.state.users[user.ID] = user
	return user, nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	defer s.lock(ctx)()

	for _, u := range s.state.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, apperror.NewNotFoundError(fmt.Sprintf("Usuário '%s' não encontrado", username))
}
