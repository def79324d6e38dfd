package httpapi

import (
	"time"

	"github.com/fjod/go_shop/internal/domain"
)

// Response DTOs. Money travels as fixed two-decimal strings so clients never
// see float artifacts.

type CartItemDTO struct {
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	AddedAt   time.Time `json:"added_at"`
}

type CartDTO struct {
	UserID    string        `json:"user_id"`
	Items     []CartItemDTO `json:"items"`
	Total     string        `json:"total"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type OrderItemDTO struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type OrderDTO struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Status          string         `json:"status"`
	PaymentStatus   string         `json:"payment_status"`
	Subtotal        string         `json:"subtotal"`
	Tax             string         `json:"tax"`
	Shipping        string         `json:"shipping"`
	Total           string         `json:"total"`
	ShippingAddress string         `json:"shipping_address"`
	BillingAddress  string         `json:"billing_address,omitempty"`
	TrackingNumber  string         `json:"tracking_number,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	Items           []OrderItemDTO `json:"items"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type ProductDTO struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Stock       int       `json:"stock"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCartDTO(c *domain.Cart) CartDTO {
	items := make([]CartItemDTO, len(c.Items))
	for i, item := range c.Items {
		items[i] = CartItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			AddedAt:   item.AddedAt,
		}
	}
	return CartDTO{
		UserID:    c.UserID,
		Items:     items,
		Total:     c.Total().StringFixed(2),
		UpdatedAt: c.UpdatedAt,
	}
}

func toOrderDTO(o *domain.Order) OrderDTO {
	items := make([]OrderItemDTO, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Subtotal:    item.Subtotal.StringFixed(2),
		}
	}
	return OrderDTO{
		ID:              o.ID.String(),
		UserID:          o.UserID,
		Status:          o.Status.String(),
		PaymentStatus:   o.PaymentStatus.String(),
		Subtotal:        o.Subtotal.StringFixed(2),
		Tax:             o.Tax.StringFixed(2),
		Shipping:        o.Shipping.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		TrackingNumber:  o.TrackingNumber,
		Notes:           o.Notes,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderDTOs(orders []*domain.Order) []OrderDTO {
	out := make([]OrderDTO, len(orders))
	for i, o := range orders {
		out[i] = toOrderDTO(o)
	}
	return out
}

func toProductDTO(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
	}
}
