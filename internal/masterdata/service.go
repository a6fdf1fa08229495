package masterdata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-commerce/internal/numbering"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// StockPoster records the opening stock movement of a new product.
type StockPoster interface {
	PostInitial(ctx context.Context, productID string, quantity float64, at time.Time) error
}

// PartyInput carries client and supplier fields.
type PartyInput struct {
	EntityCode string `json:"entityCode" validate:"omitempty,max=16"`
	Name       string `json:"name" validate:"required,max=200"`
	Company    string `json:"company" validate:"max=200"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"max=50"`
	Address    string `json:"address" validate:"max=500"`
	VATNumber  string `json:"vatNumber" validate:"max=50"`
}

// ProductInput carries product fields. InitialStock is posted as an Initial movement.
type ProductInput struct {
	ProductCode   string   `json:"productCode" validate:"omitempty,max=16"`
	Name          string   `json:"name" validate:"required,max=200"`
	Description   string   `json:"description"`
	SalePrice     float64  `json:"salePrice" validate:"gte=0"`
	PurchasePrice float64  `json:"purchasePrice" validate:"gte=0"`
	VATRate       float64  `json:"vatRate" validate:"gte=0,lte=100"`
	InitialStock  float64  `json:"initialStock"`
	MinStockAlert *float64 `json:"minStockAlert" validate:"omitempty,gte=0"`
	Unit          string   `json:"unit" validate:"max=16"`
}

// ProductStore is the product collection with edits that leave the stock cache alone.
type ProductStore interface {
	store.Collection[Product]
	store.FieldKeeper[Product]
}

// ServiceParams wires the master data service.
type ServiceParams struct {
	Clients   store.Collection[Client]
	Suppliers store.Collection[Supplier]
	Products  ProductStore
	Settings  store.Collection[Settings]
	Stock     StockPoster
	Pipelines shared.PipelineDeps
	Logger    *slog.Logger
	Clock     shared.Clock
	// Locale and Currency replace the built-in defaults until settings are saved.
	Locale   string
	Currency string
}

// Service manages clients, suppliers, products and settings.
type Service struct {
	clients   store.Collection[Client]
	suppliers store.Collection[Supplier]
	products  ProductStore
	settings  store.Collection[Settings]
	stock     StockPoster
	pipelines shared.PipelineDeps
	logger    *slog.Logger
	clock     shared.Clock
	defaults  Settings
}

// NewService constructs the master data service.
func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultSettings()
	if p.Locale != "" {
		defaults.Locale = p.Locale
	}
	if p.Currency != "" {
		defaults.Currency = p.Currency
	}
	return &Service{
		defaults:  defaults,
		clients:   p.Clients,
		suppliers: p.Suppliers,
		products:  p.Products,
		settings:  p.Settings,
		stock:     p.Stock,
		pipelines: p.Pipelines,
		logger:    logger,
		clock:     p.Clock,
	}
}

// Client operations

func (s *Service) ListClients(ctx context.Context) ([]Client, error) {
	return s.clients.GetAll(ctx)
}

func (s *Service) GetClient(ctx context.Context, id string) (Client, error) {
	return store.Find(ctx, s.clients, id)
}

// CreateClient allocates the next C### code when none is given.
func (s *Service) CreateClient(ctx context.Context, in PartyInput) (Client, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Client{}, err
	}
	now := s.clock.Now().UTC()
	return numbering.AllocateCode(ctx, s.clients, numbering.ClientPrefix, in.EntityCode,
		func(c Client) string { return c.EntityCode },
		func(code string) Client {
			return Client{
				ID: uuid.NewString(), EntityCode: code, Name: in.Name, Company: in.Company,
				Email: in.Email, Phone: in.Phone, Address: in.Address, VATNumber: in.VATNumber,
				CreatedAt: now,
			}
		})
}

func (s *Service) UpdateClient(ctx context.Context, id string, in PartyInput) (Client, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Client{}, err
	}
	existing, err := store.Find(ctx, s.clients, id)
	if err != nil {
		return Client{}, err
	}
	if in.EntityCode != "" {
		existing.EntityCode = in.EntityCode
	}
	existing.Name, existing.Company = in.Name, in.Company
	existing.Email, existing.Phone = in.Email, in.Phone
	existing.Address, existing.VATNumber = in.Address, in.VATNumber
	return s.clients.Update(ctx, existing)
}

// DeleteClient removes the client. Documents keep their denormalized client name.
func (s *Service) DeleteClient(ctx context.Context, id string) error {
	return s.clients.Delete(ctx, id)
}

// Supplier operations

func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.suppliers.GetAll(ctx)
}

func (s *Service) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	return store.Find(ctx, s.suppliers, id)
}

// CreateSupplier allocates the next F### code when none is given.
func (s *Service) CreateSupplier(ctx context.Context, in PartyInput) (Supplier, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Supplier{}, err
	}
	now := s.clock.Now().UTC()
	return numbering.AllocateCode(ctx, s.suppliers, numbering.SupplierPrefix, in.EntityCode,
		func(sp Supplier) string { return sp.EntityCode },
		func(code string) Supplier {
			return Supplier{
				ID: uuid.NewString(), EntityCode: code, Name: in.Name, Company: in.Company,
				Email: in.Email, Phone: in.Phone, Address: in.Address, VATNumber: in.VATNumber,
				CreatedAt: now,
			}
		})
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, in PartyInput) (Supplier, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Supplier{}, err
	}
	existing, err := store.Find(ctx, s.suppliers, id)
	if err != nil {
		return Supplier{}, err
	}
	if in.EntityCode != "" {
		existing.EntityCode = in.EntityCode
	}
	existing.Name, existing.Company = in.Name, in.Company
	existing.Email, existing.Phone = in.Email, in.Phone
	existing.Address, existing.VATNumber = in.Address, in.VATNumber
	return s.suppliers.Update(ctx, existing)
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	return s.suppliers.Delete(ctx, id)
}

// Product operations

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.products.GetAll(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	return store.Find(ctx, s.products, id)
}

// CreateProduct saves the product with zero stock, then posts the opening
// stock as an Initial movement so the cache always equals the ledger sum.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Product{}, err
	}
	if in.InitialStock < 0 {
		return Product{}, shared.Invalid("initialStock", "must not be negative")
	}
	var minAlert float64
	if in.MinStockAlert != nil {
		minAlert = *in.MinStockAlert
	} else {
		settings, err := s.Settings(ctx)
		if err != nil {
			return Product{}, err
		}
		minAlert = settings.LowStockDefault
	}

	id := uuid.NewString()
	p, err := shared.StartPipeline(ctx, s.pipelines, "product_create", id)
	if err != nil {
		return Product{}, err
	}
	defer p.Close(ctx)

	now := s.clock.Now().UTC()
	var created Product
	err = p.Step(ctx, "save_product", func(ctx context.Context) (string, error) {
		saved, err := numbering.AllocateCode(ctx, s.products, numbering.ProductPrefix, in.ProductCode,
			func(pr Product) string { return pr.ProductCode },
			func(code string) Product {
				return Product{
					ID: id, ProductCode: code, Name: in.Name, Description: in.Description,
					SalePrice: in.SalePrice, PurchasePrice: in.PurchasePrice, VATRate: in.VATRate,
					MinStockAlert: minAlert, Unit: in.Unit, CreatedAt: now,
				}
			})
		created = saved
		return saved.ID, err
	})
	if err != nil {
		return Product{}, shared.FirstStepCause(err)
	}
	if in.InitialStock == 0 {
		return created, nil
	}
	if s.stock == nil {
		return created, errors.New("masterdata: no stock poster configured")
	}
	err = p.Step(ctx, "initial_stock", func(ctx context.Context) (string, error) {
		return id, s.stock.PostInitial(ctx, id, in.InitialStock, now)
	})
	if err != nil {
		return created, err
	}
	return store.Find(ctx, s.products, id)
}

// UpdateProduct edits catalogue fields. The stored stock quantity is kept as is,
// so it only ever moves through ledger increments.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (Product, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Product{}, err
	}
	existing, err := store.Find(ctx, s.products, id)
	if err != nil {
		return Product{}, err
	}
	if in.ProductCode != "" {
		existing.ProductCode = in.ProductCode
	}
	existing.Name, existing.Description, existing.Unit = in.Name, in.Description, in.Unit
	existing.SalePrice, existing.PurchasePrice, existing.VATRate = in.SalePrice, in.PurchasePrice, in.VATRate
	if in.MinStockAlert != nil {
		existing.MinStockAlert = *in.MinStockAlert
	}
	return s.products.UpdateKeeping(ctx, existing, StockField)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.products.Delete(ctx, id)
}

// Settings operations

// Settings returns the saved settings or the defaults.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	saved, err := store.Find(ctx, s.settings, SettingsID)
	if errors.Is(err, shared.ErrNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return Settings{}, err
	}
	if saved.PaymentTermDays == 0 {
		saved.PaymentTermDays = s.defaults.PaymentTermDays
	}
	if saved.Locale == "" {
		saved.Locale = s.defaults.Locale
	}
	if saved.Currency == "" {
		saved.Currency = s.defaults.Currency
	}
	return saved, nil
}

// PaymentTermDays returns the configured invoice payment term.
func (s *Service) PaymentTermDays(ctx context.Context) (int, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return 0, err
	}
	return settings.PaymentTermDays, nil
}

// UpdateSettings writes the singleton settings record.
func (s *Service) UpdateSettings(ctx context.Context, in Settings) (Settings, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Settings{}, err
	}
	in.ID = SettingsID
	_, err := store.Find(ctx, s.settings, SettingsID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return s.settings.Add(ctx, in)
	case err != nil:
		return Settings{}, err
	default:
		return s.settings.Update(ctx, in)
	}
}
