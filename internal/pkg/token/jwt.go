package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"milsupply/internal/domain"
)

const issuer = "milsupply"

// ActorClaims são as informações do operador carregadas no JWT.
// É obrigatório incorporar jwt.RegisteredClaims.
type ActorClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Service emite e valida as credenciais de sessão entregues pela camada de autenticação.
type Service struct {
	secretKey []byte
	expiry    time.Duration
	now       func() time.Time
}

// NewService cria uma nova instância do serviço Token.
func NewService(secretKey string, expiry time.Duration) *Service {
	return &Service{
		secretKey: []byte(secretKey),
		expiry:    expiry,
		now:       time.Now,
	}
}

// Issue cria um novo JWT assinado (HS256) contendo o ID e o papel do operador.
func (s *Service) Issue(actor domain.Actor) (string, error) {
	now := s.now()
	claims := ActorClaims{
		UserID: actor.UserID,
		Role:   string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   actor.UserID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("falha ao assinar o token: %w", err)
	}
	return signed, nil
}

// Parse valida o token e devolve o ator que ele identifica.
func (s *Service) Parse(tokenString string) (domain.Actor, error) {
	claims := &ActorClaims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verifica se o método de assinatura é o esperado (HS256)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de assinatura inesperado: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("token inválido: %w", err)
	}
	if !parsed.Valid {
		return domain.Actor{}, errors.New("token não é válido")
	}

	actor := domain.Actor{UserID: claims.UserID, Role: domain.UserRole(claims.Role)}
	if actor.UserID == "" || !actor.Role.Valid() {
		return domain.Actor{}, errors.New("token sem usuário ou papel reconhecido")
	}
	return actor, nil
}
