package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// orderTransitions lists the statuses each status may move to.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderRefunded},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// CanBecome reports whether an order in s may move to next.
func (s OrderStatus) CanBecome(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PayCOD    PaymentMethod = "cod"
	PayCard   PaymentMethod = "card"
	PayPal    PaymentMethod = "paypal"
	PayStripe PaymentMethod = "stripe"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCOD, PayCard, PayPal, PayStripe:
		return true
	}
	return false
}

type Customer struct {
	FullName string `bson:"fullName" json:"fullName"`
	Email    string `bson:"email" json:"email"`
	Phone    string `bson:"phone,omitempty" json:"phone,omitempty"`
}

type Address struct {
	FullName     string `bson:"fullName" json:"fullName"`
	Phone        string `bson:"phone,omitempty" json:"phone,omitempty"`
	AddressLine1 string `bson:"addressLine1" json:"addressLine1"`
	AddressLine2 string `bson:"addressLine2,omitempty" json:"addressLine2,omitempty"`
	City         string `bson:"city" json:"city"`
	State        string `bson:"state,omitempty" json:"state,omitempty"`
	PostalCode   string `bson:"postalCode" json:"postalCode"`
	Country      string `bson:"country" json:"country"`
}

// Normalize trims every field and defaults the country to US.
func (a *Address) Normalize() {
	for _, f := range []*string{&a.FullName, &a.Phone, &a.AddressLine1, &a.AddressLine2, &a.City, &a.State, &a.PostalCode, &a.Country} {
		*f = strings.TrimSpace(*f)
	}
	if a.Country == "" {
		a.Country = "US"
	}
}

// Validate returns a user-facing message for the first missing field, or "".
func (a *Address) Validate() string {
	switch {
	case a.FullName == "":
		return "Address must include a full name"
	case a.AddressLine1 == "":
		return "Address must include a street line"
	case a.City == "":
		return "Address must include a city"
	case a.PostalCode == "":
		return "Address must include a postal code"
	}
	return ""
}

// OrderItem snapshots the product as it was sold.
type OrderItem struct {
	Product    primitive.ObjectID `bson:"product" json:"product"`
	Title      string             `bson:"title" json:"title"`
	Price      float64            `bson:"price" json:"price"`
	Quantity   int                `bson:"quantity" json:"quantity"`
	TotalPrice float64            `bson:"totalPrice" json:"totalPrice"`
}

// Order is placed by a logged-in user or a guest; User is nil for guests.
type Order struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	OrderNumber     string              `bson:"orderNumber" json:"orderNumber"`
	User            *primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"`
	Customer        Customer            `bson:"customer" json:"customer"`
	Items           []OrderItem         `bson:"items" json:"items"`
	Subtotal        float64             `bson:"subtotal" json:"subtotal"`
	Discount        float64             `bson:"discount" json:"discount"`
	ShippingCost    float64             `bson:"shippingCost" json:"shippingCost"`
	Tax             float64             `bson:"tax" json:"tax"`
	Total           float64             `bson:"total" json:"total"`
	Currency        string              `bson:"currency" json:"currency"`
	ShippingAddress Address             `bson:"shippingAddress" json:"shippingAddress"`
	BillingAddress  Address             `bson:"billingAddress" json:"billingAddress"`
	Status          OrderStatus         `bson:"status" json:"status"`
	PaymentMethod   PaymentMethod       `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus   PaymentStatus       `bson:"paymentStatus" json:"paymentStatus"`
	PaymentRef      string              `bson:"paymentRef,omitempty" json:"paymentRef,omitempty"`
	Notes           string              `bson:"notes,omitempty" json:"notes,omitempty"`
	AdminNotes      string              `bson:"adminNotes,omitempty" json:"adminNotes,omitempty"`
	DeliveredAt     *time.Time          `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}
