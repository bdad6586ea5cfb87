// Package app monta o núcleo de suprimentos para a camada de apresentação e os scripts.
package app

import (
	"milsupply/config"
	"milsupply/internal/domain"
	"milsupply/internal/pkg/cache"
	"milsupply/internal/pkg/database"
	"milsupply/internal/pkg/logger"
	"milsupply/internal/pkg/token"
	"milsupply/internal/repository/catalogrepo"
	"milsupply/internal/repository/memrepo"
	"milsupply/internal/repository/requisitionrepo"
	"milsupply/internal/repository/stockrepo"
	"milsupply/internal/repository/userrepo"
	"milsupply/internal/service/catalogservice"
	"milsupply/internal/service/fulfillmentservice"
	"milsupply/internal/service/requisitionservice"
	"milsupply/internal/service/stockservice"
	"milsupply/internal/service/userservice"
)

// Core agrupa os componentes consumidos pela apresentação.
// Toda alteração de saldo passa por Ledger (diretamente ou via Fulfillment/Catalog).
type Core struct {
	Ledger       domain.StockLedger
	Requisitions domain.RequisitionStore
	Fulfillment  domain.FulfillmentEngine
	Catalog      domain.Catalog
	Users        *userservice.UserService

	closers []func() error
}

// Verificações de conformidade em tempo de compilação.
var (
	_ domain.StockLedger       = (*stockservice.Service)(nil)
	_ domain.RequisitionStore  = (*requisitionservice.Service)(nil)
	_ domain.FulfillmentEngine = (*fulfillmentservice.Service)(nil)
	_ domain.Catalog           = (*catalogservice.Service)(nil)

	_ requisitionRepository = (*requisitionrepo.RequisitionRepository)(nil)
	_ requisitionRepository = (*memrepo.Store)(nil)
)

// requisitionRepository atende tanto o cadastro quanto o atendimento de requisições.
type requisitionRepository interface {
	requisitionservice.RequisitionRepository
	fulfillmentservice.FulfillmentRepository
}

// repositories reúne as implementações de armazenamento usadas na montagem.
type repositories struct {
	stock        stockservice.StockRepository
	requisitions requisitionRepository
	catalog      catalogservice.CatalogRepository
	users        userservice.UserRepository
	tx           stockservice.Transactor
}

// NewPostgresCore conecta ao Postgres (e ao Redis para o cache do catálogo) e monta o núcleo.
func NewPostgresCore(cfg *config.Config, log logger.Logger) (*Core, error) {
	pool := database.DefaultPoolConfig
	pool.MaxOpenConns = cfg.DBMaxOpenConns

	db, err := database.NewPostgresDB(cfg.RequireDatabaseURL(), pool)
	if err != nil {
		return nil, err
	}
	log.Info("Conexão PostgreSQL estabelecida.", nil)

	cacheClient := cache.NewRedisClient(cfg.RedisAddr, log)

	core := build(cfg, log, repositories{
		stock:        stockrepo.NewStockRepository(db, cfg.DBTimeout, log),
		requisitions: requisitionrepo.NewRequisitionRepository(db, cfg.DBTimeout, log),
		catalog:      catalogrepo.NewCatalogRepository(db, cacheClient, cfg.DBTimeout, cfg.CacheTTL, log),
		users:        userrepo.NewUserRepository(db, cfg.DBTimeout, log),
		tx:           database.NewTransactor(db, cfg.DBTimeout, log),
	})
	core.closers = append(core.closers, cacheClient.Close, db.Close)
	return core, nil
}

// NewMemoryCore monta o núcleo sobre o armazenamento em memória (ensaios e testes).
func NewMemoryCore(cfg *config.Config, log logger.Logger) *Core {
	store := memrepo.NewStore(log)
	return build(cfg, log, repositories{
		stock:        store,
		requisitions: store,
		catalog:      store,
		users:        store,
		tx:           store,
	})
}

func build(cfg *config.Config, log logger.Logger, repos repositories) *Core {
	ledger := stockservice.NewService(repos.stock, repos.tx, log).
		WithHistoryLimit(cfg.HistoryDefaultLimit)
	log.Debug("Ledger de estoque inicializado.", nil)

	requisitions := requisitionservice.NewService(repos.requisitions, repos.stock, repos.tx, log).
		WithPrefix(cfg.RequisitionPrefix).
		WithQueryLimit(cfg.QueryDefaultLimit)
	log.Debug("Serviço de Requisições inicializado.", nil)

	fulfillment := fulfillmentservice.NewService(repos.requisitions, ledger, repos.tx, log)
	catalog := catalogservice.NewService(repos.catalog, ledger, repos.tx, log)

	tokenSvc := token.NewService(cfg.JWTSecretKey, cfg.TokenExpiry)
	users := userservice.NewService(repos.users, tokenSvc, log)
	log.Debug("Serviços de atendimento, catálogo e usuários inicializados.", nil)

	return &Core{
		Ledger:       ledger,
		Requisitions: requisitions,
		Fulfillment:  fulfillment,
		Catalog:      catalog,
		Users:        users,
	}
}

// Close libera as conexões abertas por NewPostgresCore.
func (c *Core) Close() error {
	var first error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
