package domain

import "time"

// User representa a conta de um operador do armazém.
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"` // Oculta o hash da senha no JSON
	Role         UserRole  `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserRole é o papel do usuário; só admin atende requisições.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Actor identifica quem executa a operação. É fornecido pela camada de autenticação.
type Actor struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// UserRegistration representa o payload de entrada para o registro.
type UserRegistration struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Role     UserRole `json:"role"`
}
