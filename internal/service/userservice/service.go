package userservice

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
)

// UserRepository é o contrato de persistência de contas consumido pelo serviço.
type UserRepository interface {
	Save(ctx context.Context, user domain.User) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
}

// TokenService é o contrato da camada de token (internal/pkg/token).
type TokenService interface {
	Issue(actor domain.Actor) (string, error)
	Parse(tokenString string) (domain.Actor, error)
}

// UserService registra operadores e converte credenciais no Actor usado pelo núcleo.
type UserService struct {
	UserRepo UserRepository
	TokenSvc TokenService
	logger   logger.Logger
}

// NewService cria uma nova instância do UserService, injetando o Repositório.
func NewService(repo UserRepository, tokenSvc TokenService, logger logger.Logger) *UserService {
	return &UserService{
		UserRepo: repo,
		TokenSvc: tokenSvc,
		logger:   logger,
	}
}

// Register registra um novo usuário no sistema.
// Ele faz o hashing da senha; papel vazio vira "user".
func (s *UserService) Register(ctx context.Context, registration domain.UserRegistration) (domain.User, error) {
	username := strings.TrimSpace(registration.Username)
	if username == "" || registration.Password == "" {
		return domain.User{}, apperror.NewValidationError("Usuário e senha são obrigatórios.")
	}

	role := registration.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return domain.User{}, apperror.NewValidationError("Papel de usuário desconhecido: " + string(role))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(registration.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Falha ao gerar hash da senha.", err)
		return domain.User{}, apperror.NewInternalError("Falha ao gerar hash da senha.", err)
	}

	user, err := s.UserRepo.Save(ctx, domain.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
		Role:         role,
	})
	if err != nil {
		// Conflito (usuário duplicado) e falhas de DB já chegam tipados do repositório.
		return domain.User{}, apperror.Normalize("Falha ao registrar usuário.", err)
	}

	s.logger.Info("Usuário registrado.", map[string]interface{}{"user_id": user.ID, "role": string(user.Role)})
	return user, nil
}

// Login autentica um usuário, verifica a senha e gera um JWT.
func (s *UserService) Login(ctx context.Context, username string, password string) (string, error) {
	if username == "" || password == "" {
		return "", apperror.NewUnauthorizedError("Usuário e senha são obrigatórios.")
	}

	user, err := s.UserRepo.FindByUsername(ctx, username)
	if err != nil {
		// NotFound vira Unauthorized para não dar dicas a invasores.
		var notFoundErr *apperror.NotFoundError
		if errors.As(err, &notFoundErr) {
			s.logger.Info("Tentativa de login com usuário inexistente.", map[string]interface{}{"username": username})
			return "", apperror.NewUnauthorizedError("Credenciais inválidas.")
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Senha incorreta no login.", map[string]interface{}{"user_id": user.ID})
		return "", apperror.NewUnauthorizedError("Credenciais inválidas.")
	}

	tokenString, err := s.TokenSvc.Issue(domain.Actor{UserID: user.ID, Role: user.Role})
	if err != nil {
		s.logger.Error("Falha ao gerar token de autenticação.", err)
		return "", apperror.NewInternalError("Falha ao gerar token de autenticação.", err)
	}
	return tokenString, nil
}

// Authenticate devolve o Actor identificado pelo token de sessão.
func (s *UserService) Authenticate(tokenString string) (domain.Actor, error) {
	actor, err := s.TokenSvc.Parse(strings.TrimPrefix(tokenString, "Bearer "))
	if err != nil {
		s.logger.Debug("Token rejeitado.", map[string]interface{}{"error": err.Error()})
		return domain.Actor{}, apperror.NewUnauthorizedError("Sessão inválida ou expirada.")
	}
	return actor, nil
}
