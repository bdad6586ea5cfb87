package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"milsupply/config"
	"milsupply/internal/app"
	"milsupply/internal/domain"
	apperror "milsupply/internal/errors"
	"milsupply/internal/pkg/logger"
)

type demoResource struct {
	category  string
	name      string
	unit      string
	quantity  int
	threshold int
	cost      string
}

// Recursos de demonstração, um por categoria de referência usada.
var demoResources = []demoResource{
	{"Продукти харчування", "Сухий пайок", "шт", 400, 50, "185.00"},
	{"Медикаменти", "Турнікет CAT", "шт", 120, 30, "1250.00"},
	{"Боєприпаси", "Патрон 5.45x39", "шт", 20000, 5000, ""},
	{"ПММ", "Дизельне паливо", "л", 3000, 500, "52.40"},
	{"Засоби зв'язку", "Радіостанція портативна", "шт", 8, 10, "14500.00"},
}

func main() {
	log.Println("⚡ Populando dados de demonstração...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ Aviso: Arquivo .env não encontrado ou erro de leitura. Carregando configs apenas do ambiente do sistema.")
	}

	var memory bool
	var adminPassword string
	flag.BoolVar(&memory, "memory", false, "popular o armazenamento em memória (ensaio, nada é gravado)")
	flag.StringVar(&adminPassword, "admin-password", "admin", "senha da conta admin criada")
	flag.Parse()

	cfg := config.LoadConfig()
	appLog := logger.NewLogger(cfg.LogLevel)

	var core *app.Core
	if memory {
		core = app.NewMemoryCore(cfg, appLog)
	} else {
		var err error
		core, err = app.NewPostgresCore(cfg, appLog)
		if err != nil {
			appLog.Fatal("Falha ao conectar ao banco de dados.", err)
		}
	}
	defer core.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := seed(ctx, core, adminPassword, memory, appLog); err != nil {
		appLog.Fatal("Falha ao popular dados de demonstração.", err)
	}
	appLog.Info("Dados de demonstração criados.", nil)
}

func seed(ctx context.Context, core *app.Core, adminPassword string, memory bool, log logger.Logger) error {
	admin, err := ensureUser(ctx, core, "admin", adminPassword, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if _, err := ensureUser(ctx, core, "operator", "operator", domain.RoleUser); err != nil {
		return err
	}

	categories, err := categoriesByName(ctx, core, admin, memory)
	if err != nil {
		return err
	}

	resources := map[string]domain.Resource{}
	for _, demo := range demoResources {
		in := domain.NewResource{
			Name:              demo.name,
			CategoryID:        categories[demo.category],
			UnitOfMeasure:     demo.unit,
			LowStockThreshold: demo.threshold,
			InitialQuantity:   demo.quantity,
		}
		if demo.cost != "" {
			in.Cost = decimal.NewNullDecimal(decimal.RequireFromString(demo.cost))
		}
		res, err := core.Catalog.RegisterResource(ctx, admin, in)
		if err != nil {
			return err
		}
		resources[demo.name] = res
	}

	req, err := core.Requisitions.Create(ctx, domain.NewRequisition{
		CreatedBy:  admin.UserID,
		Department: "1-й механізований батальйон",
		Urgency:    domain.UrgencyUrgent,
		Purpose:    "Поповнення запасів після ротації",
	})
	if err != nil {
		return err
	}

	items := []domain.NewRequisitionItem{
		{RequisitionID: req.ID, ResourceID: resources["Сухий пайок"].ID, Quantity: 120},
		{RequisitionID: req.ID, ResourceID: resources["Турнікет CAT"].ID, Quantity: 40},
		{RequisitionID: req.ID, Name: "Тепловізійний приціл", UnitOfMeasure: "шт", Quantity: 2, Justification: "Немає в каталозі"},
	}
	var first domain.RequisitionItem
	for i, in := range items {
		item, err := core.Requisitions.AddItem(ctx, in)
		if err != nil {
			return err
		}
		if i == 0 {
			first = item
		}
	}

	result, err := core.Fulfillment.FulfillItem(ctx, admin, domain.FulfillmentRequest{
		ItemID:              first.ID,
		Quantity:            first.QuantityRequested,
		RecipientDepartment: req.Department,
	})
	if err != nil {
		return err
	}

	log.Info(result.Message, map[string]interface{}{
		"requisition":        req.Number,
		"requisition_status": string(result.RequisitionStatus),
	})
	return nil
}

// ensureUser cria a conta ou, se já existir, apenas entra com ela.
func ensureUser(ctx context.Context, core *app.Core, username, password string, role domain.UserRole) (domain.Actor, error) {
	_, err := core.Users.Register(ctx, domain.UserRegistration{Username: username, Password: password, Role: role})
	var conflict *apperror.ConflictError
	if err != nil && !errors.As(err, &conflict) {
		return domain.Actor{}, err
	}

	sessionToken, err := core.Users.Login(ctx, username, password)
	if err != nil {
		return domain.Actor{}, err
	}
	return core.Users.Authenticate(sessionToken)
}

// categoriesByName devolve as categorias de referência. No Postgres elas vêm da migração;
// em memória são criadas aqui.
func categoriesByName(ctx context.Context, core *app.Core, admin domain.Actor, memory bool) (map[string]string, error) {
	if memory {
		for _, demo := range demoResources {
			if _, err := core.Catalog.CreateCategory(ctx, admin, demo.category, ""); err != nil {
				var conflict *apperror.ConflictError
				if !errors.As(err, &conflict) {
					return nil, err
				}
			}
		}
	}

	categories, err := core.Catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(categories))
	for _, c := range categories {
		byName[c.Name] = c.ID
	}
	for _, demo := range demoResources {
		if _, ok := byName[demo.category]; !ok {
			return nil, apperror.NewNotFoundError("Categoria de referência ausente: " + demo.category)
		}
	}
	return byName, nil
}
