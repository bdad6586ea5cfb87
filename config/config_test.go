package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"milsupply/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "segredo")

	cfg := config.LoadConfig()

	assert.Equal(t, 5*time.Second, cfg.DBTimeout)
	assert.Equal(t, 25, cfg.DBMaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, time.Hour, cfg.TokenExpiry)
	assert.Equal(t, "REQ", cfg.RequisitionPrefix)
	assert.Equal(t, 50, cfg.HistoryDefaultLimit)
	assert.Equal(t, 100, cfg.QueryDefaultLimit)
}

func TestLoadConfig_OverridesAndBadNumbers(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "segredo")
	t.Setenv("REQUISITION_PREFIX", "ЗАП")
	t.Setenv("DB_TIMEOUT_SEC", "12")
	t.Setenv("QUERY_DEFAULT_LIMIT", "muitos")

	cfg := config.LoadConfig()

	assert.Equal(t, "ЗАП", cfg.RequisitionPrefix)
	assert.Equal(t, 12*time.Second, cfg.DBTimeout)
	assert.Equal(t, 100, cfg.QueryDefaultLimit)
}
