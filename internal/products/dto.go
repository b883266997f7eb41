package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliria/erp-backend/pkg/amount"
	"github.com/iliria/erp-backend/pkg/db/models"
)

type ProductDTO struct {
	ID           uuid.UUID       `json:"id"`
	Code         string          `json:"code"`
	CategoryCode *string         `json:"category_code,omitempty"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Stock        decimal.Decimal `json:"stock"`
	LowStock     decimal.Decimal `json:"low_stock"`
	AvgCost      decimal.Decimal `json:"avg_cost"`
	ImageURL     *string         `json:"image_url,omitempty"`
	IsLowStock   bool            `json:"is_low_stock"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreateInput creates a product. A blank code is generated from the category
// or, without one, from the org prefix.
type CreateInput struct {
	Code         string       `json:"code" validate:"omitempty,max=40"`
	CategoryCode *string      `json:"category_code" validate:"omitempty,max=32"`
	Name         string       `json:"name" validate:"required,max=200"`
	Description  *string      `json:"description" validate:"omitempty,max=4000"`
	Price        amount.Input `json:"price"`
	Stock        amount.Input `json:"stock"`
	LowStock     amount.Input `json:"low_stock"`
	AvgCost      amount.Input `json:"avg_cost"`
	ImageURL     *string      `json:"image_url" validate:"omitempty,url"`
}

// UpdateInput changes catalog fields. Stock only moves through transactions.
type UpdateInput struct {
	Code         *string      `json:"code" validate:"omitempty,min=1,max=40"`
	CategoryCode *string      `json:"category_code" validate:"omitempty,max=32"`
	Name         *string      `json:"name" validate:"omitempty,min=1,max=200"`
	Description  *string      `json:"description" validate:"omitempty,max=4000"`
	Price        amount.Input `json:"price"`
	LowStock     amount.Input `json:"low_stock"`
	ImageURL     *string      `json:"image_url" validate:"omitempty,url"`
}

type ListInput struct {
	CategoryCode *string
	Query        string
}

type NextCodeDTO struct {
	Code string `json:"code"`
}

// DashboardDTO holds the stock KPIs shown on the home screen.
type DashboardDTO struct {
	ProductsCount int64           `json:"products_count"`
	StockValue    decimal.Decimal `json:"stock_value"`
	LowStock      int64           `json:"low_stock"`
	OffersMonth   int64           `json:"offers_month"`
	SalesMonth    decimal.Decimal `json:"sales_month"`
}

func ToDTO(m *models.Product) ProductDTO {
	return ProductDTO{
		ID:           m.ID,
		Code:         m.Code,
		CategoryCode: m.CategoryCode,
		Name:         m.Name,
		Description:  m.Description,
		Price:        m.Price,
		Stock:        m.Stock,
		LowStock:     m.LowStock,
		AvgCost:      m.AvgCost,
		ImageURL:     m.ImageURL,
		IsLowStock:   m.IsLowStock(),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
