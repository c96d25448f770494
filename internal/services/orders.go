package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/auth"
	"shop_back_end/internal/models"
	"shop_back_end/internal/store"
)

const (
	orderNumberAttempts = 10
	orderSuffixLength   = 6
	base36              = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	ErrEmptyCart          = apperror.InvalidState("EMPTY_CART", "Cart is empty - cannot create order")
	ErrOrderNotFound      = apperror.NotFound("ORDER_NOT_FOUND", "Order not found")
	ErrNotOrderOwner      = apperror.Forbidden("FORBIDDEN", "You can only access your own orders")
	ErrCannotCancel       = apperror.InvalidState("CANNOT_CANCEL", "Only pending orders can be cancelled")
	ErrAdminOnly          = apperror.Forbidden("ADMIN_ONLY", "Admin access required")
	ErrInvalidOrderStatus = apperror.Validation("INVALID_STATUS",
		"Status must be one of: pending, confirmed, shipped, delivered, cancelled")
)

type CheckoutInput struct {
	ShippingAddress *string
	PaymentMethod   *string
	Notes           *string
}

// OrderView is an order as shown to clients.
type OrderView struct {
	models.Order
	StatusLabel string                `json:"statusLabel"`
	ItemCount   int                   `json:"itemCount"`
	Customer    *models.UserSummary   `json:"customer,omitempty"`
	Timeline    []models.TimelineStep `json:"timeline,omitempty"`
}

func newOrderView(o models.Order) OrderView {
	return OrderView{Order: o, StatusLabel: o.Status.Label(), ItemCount: len(o.Items)}
}

type StatusChange struct {
	Order    models.Order
	Previous models.OrderStatus
}

// OrderStats counts orders per status.
type OrderStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Shipped   int `json:"shipped"`
	Delivered int `json:"delivered"`
	Cancelled int `json:"cancelled"`
}

func (s *OrderStats) add(status models.OrderStatus) {
	s.Total++
	switch status {
	case models.OrderPending:
		s.Pending++
	case models.OrderConfirmed:
		s.Confirmed++
	case models.OrderShipped:
		s.Shipped++
	case models.OrderDelivered:
		s.Delivered++
	case models.OrderCancelled:
		s.Cancelled++
	}
}

type OrderService struct {
	store  store.Store
	carts  *CartService
	now    Clock
	suffix func() (string, error)
}

func NewOrderService(st store.Store, carts *CartService) *OrderService {
	return &OrderService{store: st, carts: carts, now: utcNow, suffix: randomSuffix}
}

func randomSuffix() (string, error) {
	var b strings.Builder
	radix := big.NewInt(int64(len(base36)))
	for i := 0; i < orderSuffixLength; i++ {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", errors.Wrap(err, "reading random order suffix")
		}
		b.WriteByte(base36[n.Int64()])
	}
	return b.String(), nil
}

// nextOrderNumber returns an unused ORD-YYYYMMDD-XXXXXX number.
func (s *OrderService) nextOrderNumber(ctx context.Context, at time.Time) (string, error) {
	prefix := "ORD-" + at.UTC().Format("20060102") + "-"
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		suffix, err := s.suffix()
		if err != nil {
			return "", err
		}
		number := prefix + suffix
		taken, err := s.store.Orders().NumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
		log.WithField("order_number", number).Debug("order number collision")
	}
	return "", errors.Errorf("no free order number after %d attempts", orderNumberAttempts)
}

// CreateOrder turns the caller's cart into a pending order. The order insert
// and the cart clear commit together or not at all.
func (s *OrderService) CreateOrder(ctx context.Context, userID primitive.ObjectID, in CheckoutInput) (OrderView, error) {
	var order models.Order
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		lines, err := s.carts.lines(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		items := make([]models.OrderItem, 0, len(lines))
		total := decimal.Zero
		for _, line := range lines {
			if line.Product == nil {
				return apperror.InvalidState("PRODUCT_UNAVAILABLE",
					fmt.Sprintf("Product %s in your cart is no longer available", line.ProductID.Hex()))
			}
			price := decimal.NewFromFloat(line.Product.Price)
			subtotal := price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
			total = total.Add(subtotal)
			items = append(items, models.OrderItem{
				ProductID:   line.Product.ID,
				ProductName: line.Product.Name,
				Quantity:    line.Quantity,
				Price:       line.Product.Price,
				Subtotal:    subtotal.InexactFloat64(),
			})
		}

		now := s.now()
		number, err := s.nextOrderNumber(ctx, now)
		if err != nil {
			return apperror.Internal(err)
		}
		order = models.Order{
			OrderNumber:     number,
			UserID:          userID,
			Items:           items,
			TotalAmount:     total.InexactFloat64(),
			Status:          models.OrderPending,
			ShippingAddress: nonEmpty(in.ShippingAddress),
			PaymentMethod:   nonEmpty(in.PaymentMethod),
			Notes:           nonEmpty(in.Notes),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.Orders().Create(ctx, &order); err != nil {
			return apperror.Internal(err)
		}
		if _, err := s.store.Cart().DeleteByUser(ctx, userID); err != nil {
			return apperror.Internal(err)
		}
		return nil
	})
	if err != nil {
		return OrderView{}, apperror.From(err)
	}

	view := newOrderView(order)
	if user, err := s.store.Users().FindByID(ctx, userID); err == nil {
		customer := user.Summary()
		view.Customer = &customer
	}
	return view, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func parseStatus(raw string) (models.OrderStatus, error) {
	status := models.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrInvalidOrderStatus
	}
	return status, nil
}

// ListMyOrders lists the caller's orders, optionally filtered by status.
func (s *OrderService) ListMyOrders(ctx context.Context, userID primitive.ObjectID, rawStatus, rawSort string) ([]OrderView, error) {
	filter := models.OrderFilter{UserID: &userID, SortBy: models.SortNewest}
	if rawStatus != "" {
		status, err := parseStatus(rawStatus)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	switch models.OrderSort(rawSort) {
	case models.SortOldest, models.SortStatus:
		filter.SortBy = models.OrderSort(rawSort)
	}

	orders, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o))
	}
	return views, nil
}

func (s *OrderService) findOrder(ctx context.Context, ref string) (models.Order, error) {
	var (
		order models.Order
		err   error
	)
	if id, parseErr := primitive.ObjectIDFromHex(ref); parseErr == nil {
		order, err = s.store.Orders().FindByID(ctx, id)
	} else {
		order, err = s.store.Orders().FindByNumber(ctx, strings.ToUpper(strings.TrimSpace(ref)))
	}
	if err != nil {
		return models.Order{}, notFoundOr(err, ErrOrderNotFound)
	}
	return order, nil
}

// GetOrder looks an order up by id or order number. Owners and Admins may
// read it.
func (s *OrderService) GetOrder(ctx context.Context, caller auth.Identity, ref string) (OrderView, error) {
	order, err := s.findOrder(ctx, ref)
	if err != nil {
		return OrderView{}, err
	}
	if order.UserID != caller.UserID && caller.Role != models.RoleAdmin {
		return OrderView{}, ErrNotOrderOwner
	}

	view := newOrderView(order)
	view.Timeline = order.Timeline()
	if customer, err := s.store.Users().FindByID(ctx, order.UserID); err == nil {
		summary := customer.Summary()
		view.Customer = &summary
	}
	return view, nil
}

// CancelOrder cancels one of the caller's pending orders.
func (s *OrderService) CancelOrder(ctx context.Context, userID primitive.ObjectID, ref string) (models.Order, error) {
	order, err := s.findOrder(ctx, ref)
	if err != nil {
		return models.Order{}, err
	}
	if order.UserID != userID {
		return models.Order{}, ErrNotOrderOwner
	}
	if order.Status != models.OrderPending {
		return models.Order{}, cannotCancel(order.Status)
	}

	now := s.now()
	err = s.store.Orders().UpdateStatus(ctx, order.ID, models.OrderPending, models.OrderCancelled, nil, now)
	if errors.Is(err, store.ErrStatusChanged) {
		return models.Order{}, s.reloadCannotCancel(ctx, order)
	}
	if err != nil {
		return models.Order{}, notFoundOr(err, ErrOrderNotFound)
	}
	order.Status = models.OrderCancelled
	order.UpdatedAt = now
	return order, nil
}

func cannotCancel(status models.OrderStatus) error {
	return apperror.InvalidState(ErrCannotCancel.Code, fmt.Sprintf(
		"Order cannot be cancelled. Current status: %s. Only pending orders can be cancelled.", status.Label()))
}

// reloadCannotCancel reports the status that won a concurrent update.
func (s *OrderService) reloadCannotCancel(ctx context.Context, order models.Order) error {
	if current, err := s.store.Orders().FindByID(ctx, order.ID); err == nil {
		return cannotCancel(current.Status)
	}
	return ErrCannotCancel
}

// UpdateOrderStatus moves an order along the lifecycle. Setting the current
// status again is accepted and only records notes. Notes are appended as
// "[Admin Update] <time>: <notes>" lines.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, caller auth.Identity, rawID, rawStatus string, notes *string) (StatusChange, error) {
	if caller.Role != models.RoleAdmin {
		return StatusChange{}, ErrAdminOnly
	}
	id, err := ParseID("order", rawID)
	if err != nil {
		return StatusChange{}, err
	}
	next, err := parseStatus(rawStatus)
	if err != nil {
		return StatusChange{}, err
	}
	order, err := s.store.Orders().FindByID(ctx, id)
	if err != nil {
		return StatusChange{}, notFoundOr(err, ErrOrderNotFound)
	}

	previous := order.Status
	if previous != next && !previous.CanTransitionTo(next) {
		return StatusChange{}, apperror.InvalidState("INVALID_TRANSITION",
			fmt.Sprintf("Cannot change status from %s to %s", previous, next))
	}

	note := nonEmpty(notes)
	if previous == next && note == nil {
		return StatusChange{Order: order, Previous: previous}, nil
	}

	now := s.now()
	var merged *string
	if note != nil {
		line := fmt.Sprintf("[Admin Update] %s: %s", now.Format(time.RFC3339), *note)
		if order.Notes != nil && *order.Notes != "" {
			line = *order.Notes + "\n" + line
		}
		merged = &line
	}
	err = s.store.Orders().UpdateStatus(ctx, order.ID, previous, next, merged, now)
	if errors.Is(err, store.ErrStatusChanged) {
		return StatusChange{}, apperror.InvalidState("INVALID_TRANSITION",
			fmt.Sprintf("Order status changed from %s while updating, reload and retry", previous))
	}
	if err != nil {
		return StatusChange{}, notFoundOr(err, ErrOrderNotFound)
	}

	order.Status = next
	order.UpdatedAt = now
	if merged != nil {
		order.Notes = merged
	}
	return StatusChange{Order: order, Previous: previous}, nil
}

// AdminOrderList is the admin listing with per-status counts.
type AdminOrderList struct {
	Orders []OrderView
	Stats  OrderStats
}

// ListAllOrders lists every order (Admin only), optionally filtered by
// status and customer.
func (s *OrderService) ListAllOrders(ctx context.Context, caller auth.Identity, rawStatus, rawUserID string) (AdminOrderList, error) {
	if caller.Role != models.RoleAdmin {
		return AdminOrderList{}, ErrAdminOnly
	}
	filter := models.OrderFilter{SortBy: models.SortNewest}
	if rawStatus != "" {
		status, err := parseStatus(rawStatus)
		if err != nil {
			return AdminOrderList{}, err
		}
		filter.Status = status
	}
	if rawUserID != "" {
		userID, err := ParseID("user", rawUserID)
		if err != nil {
			return AdminOrderList{}, err
		}
		filter.UserID = &userID
	}

	orders, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return AdminOrderList{}, apperror.Internal(err)
	}

	userIDs := make([]primitive.ObjectID, 0, len(orders))
	for _, o := range orders {
		userIDs = append(userIDs, o.UserID)
	}
	customers, err := s.store.Users().FindByIDs(ctx, userIDs)
	if err != nil {
		return AdminOrderList{}, apperror.Internal(err)
	}

	out := AdminOrderList{Orders: make([]OrderView, 0, len(orders))}
	for _, o := range orders {
		view := newOrderView(o)
		if c, ok := customers[o.UserID]; ok {
			summary := c.Summary()
			view.Customer = &summary
		}
		out.Orders = append(out.Orders, view)
		out.Stats.add(o.Status)
	}
	return out, nil
}
