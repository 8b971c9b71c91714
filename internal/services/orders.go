package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/models"
	"github.com/AnshRaj112/storefront-backend/internal/query"
	"github.com/AnshRaj112/storefront-backend/pkg/utils"
)

// Pricing, in cents.
const (
	freeShippingOverCents = 100_00
	shippingCents         = 10_00
	taxPercent            = 8
	orderCurrency         = "USD"
)

// orderNumberAttempts bounds retries on an orderNumber collision.
const orderNumberAttempts = 3

type OrderItemInput struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// OrderInput is the checkout body. BillingAddress defaults to the
// shipping address and PaymentMethod to cash on delivery.
type OrderInput struct {
	Customer        models.Customer      `json:"customer"`
	Items           []OrderItemInput     `json:"items"`
	ShippingAddress *models.Address      `json:"shippingAddress"`
	BillingAddress  *models.Address      `json:"billingAddress"`
	PaymentMethod   models.PaymentMethod `json:"paymentMethod"`
	Notes           string               `json:"notes"`
}

// StatusInput is the admin status change body. Every field is optional,
// but at least one must be set.
type StatusInput struct {
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	PaymentRef    *string              `json:"paymentRef"`
	AdminNotes    *string              `json:"adminNotes"`
}

// OrderService prices, places and tracks orders. Placing an order takes
// stock; cancelling one gives it back.
type OrderService struct {
	store     OrderStore
	inventory Inventory
	mailer    Mailer
	cache     *CacheService
	log       *zap.Logger
	now       func() time.Time
	publicURL string
}

type OrderOption func(*OrderService)

// WithTrackingURL sets the base URL of the tracking link in confirmation emails.
func WithTrackingURL(publicURL string) OrderOption {
	return func(s *OrderService) { s.publicURL = strings.TrimRight(publicURL, "/") }
}

func NewOrderService(store OrderStore, inventory Inventory, mailer Mailer, cache *CacheService, log *zap.Logger, opts ...OrderOption) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &OrderService{
		store:     store,
		inventory: inventory,
		mailer:    mailer,
		cache:     cache,
		log:       log,
		now:       time.Now,
		publicURL: "http://localhost:8080",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// orderTotals are the priced amounts of an order, in cents.
type orderTotals struct {
	Subtotal, Shipping, Tax, Total int64
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromCents(cents int64) float64 {
	return float64(cents) / 100
}

// priceOrder applies shipping and tax to a subtotal. Shipping is free
// strictly above the threshold.
func priceOrder(subtotal int64) orderTotals {
	t := orderTotals{Subtotal: subtotal}
	if subtotal <= freeShippingOverCents {
		t.Shipping = shippingCents
	}
	t.Tax = int64(math.Round(float64(subtotal*taxPercent) / 100))
	t.Total = t.Subtotal + t.Shipping + t.Tax
	return t
}

func (s *OrderService) newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%d-%s", s.now().UnixMilli(), suffix)
}

type reservation struct {
	product primitive.ObjectID
	qty     int
}

func (s *OrderService) checkout(in *OrderInput, buyer *models.User) error {
	if buyer != nil {
		if strings.TrimSpace(in.Customer.FullName) == "" {
			in.Customer.FullName = buyer.Name
		}
		if strings.TrimSpace(in.Customer.Email) == "" {
			in.Customer.Email = buyer.Email
		}
	}
	in.Customer.FullName = strings.TrimSpace(in.Customer.FullName)
	in.Customer.Phone = strings.TrimSpace(in.Customer.Phone)
	if in.Customer.FullName == "" {
		return apperr.Validation("Please provide the customer's full name")
	}
	if err := utils.ValidateEmail(in.Customer.Email); err != nil {
		return apperr.Validation(err.Error())
	}
	in.Customer.Email = utils.NormalizeEmail(in.Customer.Email)

	if len(in.Items) == 0 {
		return apperr.Validation("An order must contain at least one item")
	}
	for _, item := range in.Items {
		if item.Quantity < 1 {
			return apperr.Validation("Item quantity must be at least 1")
		}
	}

	if in.ShippingAddress == nil {
		return apperr.Validation("Please provide a shipping address")
	}
	in.ShippingAddress.Normalize()
	if msg := in.ShippingAddress.Validate(); msg != "" {
		return apperr.Validation(msg)
	}
	if in.BillingAddress == nil {
		billing := *in.ShippingAddress
		in.BillingAddress = &billing
	}
	in.BillingAddress.Normalize()
	if msg := in.BillingAddress.Validate(); msg != "" {
		return apperr.Validation(msg)
	}

	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PayCOD
	}
	if !in.PaymentMethod.Valid() {
		return apperr.Validation("Invalid payment method: " + string(in.PaymentMethod))
	}
	in.Notes = strings.TrimSpace(in.Notes)
	return nil
}

// Place prices and stores an order. buyer is nil for guest checkout; a
// logged-in buyer fills in missing customer details and owns the order.
// Stock is taken per line; when any line or the insert fails, every unit
// already taken is returned.
func (s *OrderService) Place(ctx context.Context, buyer *models.User, in OrderInput) (*models.Order, error) {
	if err := s.checkout(&in, buyer); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	var subtotal int64
	for _, line := range in.Items {
		id, err := primitive.ObjectIDFromHex(line.Product)
		if err != nil {
			return nil, apperr.Validation("Invalid product id: " + line.Product)
		}
		p, err := s.inventory.Product(ctx, id)
		if errors.Is(err, ErrProductNotFound) {
			return nil, apperr.NotFound("Product with ID " + line.Product + " not found")
		}
		if err != nil {
			return nil, apperr.Unexpected("could not load product", err)
		}
		if p.Stock < line.Quantity {
			return nil, apperr.Validation("Insufficient stock for " + p.Title)
		}
		price := toCents(p.Price)
		lineTotal := price * int64(line.Quantity)
		subtotal += lineTotal
		items = append(items, models.OrderItem{
			Product:    p.ID,
			Title:      p.Title,
			Price:      fromCents(price),
			Quantity:   line.Quantity,
			TotalPrice: fromCents(lineTotal),
		})
	}

	var taken []reservation
	for _, item := range items {
		err := s.inventory.Reserve(ctx, item.Product, item.Quantity)
		if err != nil {
			s.release(ctx, taken)
			if errors.Is(err, ErrInsufficientStock) {
				return nil, apperr.Validation("Insufficient stock for " + item.Title)
			}
			return nil, apperr.Unexpected("could not reserve stock", err)
		}
		taken = append(taken, reservation{product: item.Product, qty: item.Quantity})
	}

	totals := priceOrder(subtotal)
	now := s.now().UTC()
	o := &models.Order{
		Customer:        in.Customer,
		Items:           items,
		Subtotal:        fromCents(totals.Subtotal),
		ShippingCost:    fromCents(totals.Shipping),
		Tax:             fromCents(totals.Tax),
		Total:           fromCents(totals.Total),
		Currency:        orderCurrency,
		ShippingAddress: *in.ShippingAddress,
		BillingAddress:  *in.BillingAddress,
		Status:          models.OrderPending,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if buyer != nil {
		id := buyer.ID
		o.User = &id
	}

	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		o.ID = primitive.NilObjectID
		o.OrderNumber = s.newOrderNumber()
		if err = s.store.Insert(ctx, o); !errors.Is(err, ErrDuplicateKey) {
			break
		}
	}
	if err != nil {
		s.release(ctx, taken)
		return nil, apperr.Unexpected("could not create order", err)
	}

	s.stockChanged(ctx)
	s.sendConfirmation(ctx, o)
	return o, nil
}

func (s *OrderService) release(ctx context.Context, taken []reservation) {
	for _, r := range taken {
		if err := s.inventory.Release(ctx, r.product, r.qty); err != nil {
			s.log.Error("stock release failed",
				zap.String("product", r.product.Hex()),
				zap.Int("quantity", r.qty),
				zap.Error(err),
			)
		}
	}
}

func (s *OrderService) stockChanged(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, ProductsCollection); err != nil {
		s.log.Warn("product cache invalidation failed", zap.Error(err))
	}
}

// sendConfirmation mails the customer. The order stands even if mail fails.
func (s *OrderService) sendConfirmation(ctx context.Context, o *models.Order) {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThanks for your order %s.\n\n", o.Customer.FullName, o.OrderNumber)
	for _, item := range o.Items {
		fmt.Fprintf(&b, "%d x %s  %.2f\n", item.Quantity, item.Title, item.TotalPrice)
	}
	fmt.Fprintf(&b, "\nSubtotal: %.2f\nShipping: %.2f\nTax: %.2f\nTotal: %.2f %s\n",
		o.Subtotal, o.ShippingCost, o.Tax, o.Total, o.Currency)
	fmt.Fprintf(&b, "\nTrack your order at %s/api/v1/orders/track/%s\n", s.publicURL, o.OrderNumber)

	err := s.mailer.Send(ctx, Message{
		To:      o.Customer.Email,
		Subject: "Order " + o.OrderNumber + " received",
		Text:    b.String(),
	})
	if err != nil {
		s.log.Error("order confirmation email failed",
			zap.String("order", o.OrderNumber),
			zap.Error(err),
		)
	}
}

// ownerScope limits non-admins to their own orders.
func ownerScope(actor *models.User) bson.M {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	return bson.M{"user": actor.ID}
}

func (s *OrderService) Get(ctx context.Context, actor *models.User, id primitive.ObjectID) (*models.Order, error) {
	o, err := s.store.FindByID(ctx, id, ownerScope(actor))
	if errors.Is(err, ErrOrderNotFound) {
		return nil, apperr.NotFound("No order found with that ID")
	}
	if err != nil {
		return nil, apperr.Unexpected("could not load order", err)
	}
	if actor.Role != models.RoleAdmin {
		o.AdminNotes = ""
	}
	return o, nil
}

// Track looks an order up by its public number.
func (s *OrderService) Track(ctx context.Context, number string) (*models.Order, error) {
	o, err := s.store.FindByNumber(ctx, strings.TrimSpace(number))
	if errors.Is(err, ErrOrderNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperr.Unexpected("could not load order", err)
	}
	o.AdminNotes = ""
	o.PaymentRef = ""
	return o, nil
}

func (s *OrderService) List(ctx context.Context, actor *models.User, params url.Values) ([]models.Order, error) {
	var opts []query.Option
	if actor.Role != models.RoleAdmin {
		opts = append(opts, query.WithExcluded("__v", "adminNotes"))
	}
	orders, err := s.store.List(ctx, query.Apply(params, opts...), ownerScope(actor))
	if err != nil {
		return nil, apperr.Unexpected("could not list orders", err)
	}
	return orders, nil
}

// ListByStatus lists every order in status, newest first.
func (s *OrderService) ListByStatus(ctx context.Context, status string, params url.Values) ([]models.Order, error) {
	st := models.OrderStatus(status)
	if !st.Valid() {
		return nil, apperr.Validation("Invalid order status: " + status)
	}
	orders, err := s.store.List(ctx, query.Apply(params), bson.M{"status": st})
	if err != nil {
		return nil, apperr.Unexpected("could not list orders", err)
	}
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle and records payment
// details. Delivery stamps deliveredAt; cancellation returns the stock.
func (s *OrderService) UpdateStatus(ctx context.Context, id primitive.ObjectID, in StatusInput) (*models.Order, error) {
	current, err := s.store.FindByID(ctx, id, nil)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperr.Unexpected("could not load order", err)
	}

	now := s.now().UTC()
	set := bson.M{}
	moving := in.Status != "" && in.Status != current.Status
	if moving {
		if !in.Status.Valid() {
			return nil, apperr.Validation("Invalid order status: " + string(in.Status))
		}
		if !current.Status.CanBecome(in.Status) {
			return nil, apperr.Validation(fmt.Sprintf("Cannot change order status from %s to %s", current.Status, in.Status))
		}
		set["status"] = in.Status
		if in.Status == models.OrderDelivered {
			set["deliveredAt"] = now
		}
	}
	if in.PaymentStatus != "" {
		if !in.PaymentStatus.Valid() {
			return nil, apperr.Validation("Invalid payment status: " + string(in.PaymentStatus))
		}
		set["paymentStatus"] = in.PaymentStatus
	}
	if in.PaymentRef != nil {
		set["paymentRef"] = strings.TrimSpace(*in.PaymentRef)
	}
	if in.AdminNotes != nil {
		set["adminNotes"] = strings.TrimSpace(*in.AdminNotes)
	}
	if len(set) == 0 {
		return current, nil
	}
	set["updatedAt"] = now

	updated, err := s.store.UpdateStatus(ctx, id, current.Status, set)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, apperr.Conflict("Order was changed by someone else, please reload it")
	}
	if err != nil {
		return nil, apperr.Unexpected("could not update order", err)
	}

	if moving && in.Status == models.OrderCancelled {
		taken := make([]reservation, 0, len(updated.Items))
		for _, item := range updated.Items {
			taken = append(taken, reservation{product: item.Product, qty: item.Quantity})
		}
		s.release(ctx, taken)
		s.stockChanged(ctx)
	}
	return updated, nil
}

func (s *OrderService) Delete(ctx context.Context, id primitive.ObjectID) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, ErrOrderNotFound) {
		return apperr.NotFound("No order found with that ID")
	}
	if err != nil {
		return apperr.Unexpected("could not delete order", err)
	}
	return nil
}
