package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config armazena todas as configurações do núcleo de suprimentos.
type Config struct {
	// Geral
	Environment string
	LogLevel    string

	// Banco de Dados (PostgreSQL)
	DatabaseURL    string
	DBTimeout      time.Duration
	DBMaxOpenConns int

	// Cache (Redis)
	RedisAddr string
	CacheTTL  time.Duration

	// Segurança (JWT)
	JWTSecretKey string
	TokenExpiry  time.Duration

	// Regras de negócio
	RequisitionPrefix   string
	HistoryDefaultLimit int
	QueryDefaultLimit   int
}

// LoadConfig carrega as configurações a partir das variáveis de ambiente.
func LoadConfig() *Config {
	cfg := &Config{
		// 1. Geral
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// 2. Banco de Dados (PostgreSQL)
		// A URL só é exigida quando o núcleo roda sobre o Postgres (ver RequireDatabaseURL).
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBTimeout:      getDurationEnv("DB_TIMEOUT_SEC", 5) * time.Second,
		DBMaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),

		// 3. Cache (Redis)
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		CacheTTL:  getDurationEnv("CACHE_TTL_MIN", 30) * time.Minute,

		// 4. Segurança (JWT)
		// mustGetEnv garante que nenhum token seja assinado com segredo vazio
		JWTSecretKey: mustGetEnv("JWT_SECRET_KEY"),
		TokenExpiry:  getDurationEnv("JWT_EXPIRY_MIN", 60) * time.Minute,

		// 5. Regras de negócio
		RequisitionPrefix:   getEnv("REQUISITION_PREFIX", "REQ"),
		HistoryDefaultLimit: getIntEnv("HISTORY_DEFAULT_LIMIT", 50),
		QueryDefaultLimit:   getIntEnv("QUERY_DEFAULT_LIMIT", 100),
	}

	return cfg
}

// RequireDatabaseURL encerra o processo se DATABASE_URL não estiver definida.
func (c *Config) RequireDatabaseURL() string {
	if c.DatabaseURL == "" {
		log.Fatalf("❌ Erro de Configuração: A variável de ambiente %s deve ser definida.", "DATABASE_URL")
	}
	return c.DatabaseURL
}

// Funções Helpers (Auxiliares)

// getEnv lê a variável de ambiente ou retorna um valor padrão.
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// mustGetEnv lê a variável de ambiente, fatal se não estiver presente.
func mustGetEnv(key string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Fatalf("❌ Erro de Configuração: A variável de ambiente %s deve ser definida.", key)
	return ""
}

// getDurationEnv lê uma variável de ambiente numérica e retorna-a como time.Duration.
func getDurationEnv(key string, defaultValue int) time.Duration {
	return time.Duration(getIntEnv(key, defaultValue))
}

// getIntEnv lê uma variável de ambiente numérica e retorna-a como int.
func getIntEnv(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("⚠️ Aviso: Valor de %s ('%s') não é um número inteiro válido. Usando padrão (%d).", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
