// Package memrepo guarda todo o estado em memória, com as mesmas regras de atomicidade
// dos repositórios PostgreSQL. Usado em simulações (seed -memory) e nos testes de invariantes.
package memrepo

import (
	"context"
	"sync"

	"milsupply/internal/domain"
	"milsupply/internal/pkg/logger"
)

type txKey struct{}

// Store implementa todos os repositórios e o Transactor sobre mapas protegidos por um único mutex.
// Uma unidade atômica segura o mutex do início ao fim, o que serializa leituras e escritas
// concorrentes do mesmo recurso (e de qualquer outro).
type Store struct {
	mu     sync.Mutex
	state  state
	logger logger.Logger
}

type state struct {
	users        map[string]domain.User
	categories   map[string]domain.Category
	resources    map[string]domain.Resource
	transactions []domain.StockTransaction
	requisitions map[string]domain.Requisition
	items        map[string]domain.RequisitionItem
	itemOrder    []string
	sequences    map[string]int
}

// NewStore cria um armazenamento vazio.
func NewStore(logger logger.Logger) *Store {
	return &Store{
		state: state{
			users:        map[string]domain.User{},
			categories:   map[string]domain.Category{},
			resources:    map[string]domain.Resource{},
			requisitions: map[string]domain.Requisition{},
			items:        map[string]domain.RequisitionItem{},
			sequences:    map[string]int{},
		},
		logger: logger,
	}
}

// WithinTx executa fn como uma unidade atômica. Se fn falhar (ou entrar em panic),
// o estado volta ao instantâneo tirado no início. Chamadas aninhadas participam da unidade externa.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	committed := false
	defer func() {
		if !committed {
			s.state = snapshot
			s.logger.Debug("Unidade em memória desfeita.", nil)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// lock protege uma operação avulsa. Dentro de uma unidade o mutex já pertence ao chamador.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (st state) clone() state {
	c := state{
		users:        make(map[string]domain.User, len(st.users)),
		categories:   make(map[string]domain.Category, len(st.categories)),
		resources:    make(map[string]domain.Resource, len(st.resources)),
		transactions: append([]domain.StockTransaction(nil), st.transactions...),
		requisitions: make(map[string]domain.Requisition, len(st.requisitions)),
		items:        make(map[string]domain.RequisitionItem, len(st.items)),
		itemOrder:    append([]string(nil), st.itemOrder...),
		sequences:    make(map[string]int, len(st.sequences)),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.categories {
		c.categories[k] = v
	}
	for k, v := range st.resources {
		c.resources[k] = v
	}
	for k, v := range st.requisitions {
		c.requisitions[k] = v
	}
	for k, v := range st.items {
		c.items[k] = v
	}
	for k, v := range st.sequences {
		c.sequences[k] = v
	}
	return c
}
