package masterdata

import (
	"strings"
	"time"
)

// Collection names.
const (
	ClientsCollection   = "clients"
	SuppliersCollection = "suppliers"
	ProductsCollection  = "products"
	SettingsCollection  = "settings"
)

// StockField is the JSON field of the cached stock quantity.
const StockField = "stockQuantity"

// Client is a customer record.
type Client struct {
	ID         string    `json:"id"`
	EntityCode string    `json:"entityCode"`
	Name       string    `json:"name"`
	Company    string    `json:"company,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	VATNumber  string    `json:"vatNumber,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (c Client) GetID() string      { return c.ID }
func (c Client) NaturalKey() string { return c.EntityCode }

// DisplayName prefers the company name.
func (c Client) DisplayName() string {
	return displayName(c.Company, c.Name)
}

// Supplier is a vendor record.
type Supplier struct {
	ID         string    `json:"id"`
	EntityCode string    `json:"entityCode"`
	Name       string    `json:"name"`
	Company    string    `json:"company,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	VATNumber  string    `json:"vatNumber,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s Supplier) GetID() string      { return s.ID }
func (s Supplier) NaturalKey() string { return s.EntityCode }

// DisplayName prefers the company name.
func (s Supplier) DisplayName() string {
	return displayName(s.Company, s.Name)
}

// Product is a stocked or service item. StockQuantity caches the sum of the
// product's stock movements.
type Product struct {
	ID            string    `json:"id"`
	ProductCode   string    `json:"productCode"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	SalePrice     float64   `json:"salePrice"`
	PurchasePrice float64   `json:"purchasePrice"`
	VATRate       float64   `json:"vatRate"`
	StockQuantity float64   `json:"stockQuantity"`
	MinStockAlert float64   `json:"minStockAlert"`
	Unit          string    `json:"unit,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (p Product) GetID() string      { return p.ID }
func (p Product) NaturalKey() string { return p.ProductCode }

// LowStock reports stock at or below the alert threshold.
func (p Product) LowStock() bool {
	return p.StockQuantity <= p.MinStockAlert
}

// SettingsID is the id of the singleton settings record.
const SettingsID = "default"

// DefaultPaymentTermDays applies when settings carry no term.
const DefaultPaymentTermDays = 30

// Settings holds company wide preferences.
type Settings struct {
	ID              string  `json:"id"`
	CompanyName     string  `json:"companyName"`
	Currency        string  `json:"currency" validate:"omitempty,len=3"`
	Locale          string  `json:"locale"`
	PaymentTermDays int     `json:"paymentTermDays" validate:"gte=0,lte=365"`
	LowStockDefault float64 `json:"lowStockDefault" validate:"gte=0"`
}

func (s Settings) GetID() string { return s.ID }

// DefaultSettings returns the settings used before any are saved.
func DefaultSettings() Settings {
	return Settings{
		ID:              SettingsID,
		Currency:        "EUR",
		Locale:          "fr-FR",
		PaymentTermDays: DefaultPaymentTermDays,
	}
}

func displayName(company, name string) string {
	if strings.TrimSpace(company) != "" {
		return company
	}
	return name
}
