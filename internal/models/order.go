package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled}

// orderTransitions is the forward-only lifecycle. Terminal states have no entry.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderShipped, OrderCancelled},
	OrderShipped:   {OrderDelivered},
}

func (s OrderStatus) Valid() bool {
	for _, status := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	_, ok := orderTransitions[s]
	return !ok
}

func (s OrderStatus) Label() string {
	switch s {
	case OrderPending:
		return "Pending"
	case OrderConfirmed:
		return "Confirmed"
	case OrderShipped:
		return "Shipped"
	case OrderDelivered:
		return "Delivered"
	case OrderCancelled:
		return "Cancelled"
	}
	return string(s)
}

type OrderItem struct {
	ProductID   primitive.ObjectID `json:"productId" bson:"product_id"`
	ProductName string             `json:"productName" bson:"product_name"`
	Quantity    int                `json:"quantity" bson:"quantity"`
	Price       float64            `json:"price" bson:"price"`
	Subtotal    float64            `json:"subtotal" bson:"subtotal"`
}

// Order is an immutable snapshot of a cart at checkout. Only Status and
// Notes change after creation.
type Order struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OrderNumber     string             `json:"orderNumber" bson:"order_number"`
	UserID          primitive.ObjectID `json:"userId" bson:"user_id"`
	Items           []OrderItem        `json:"items" bson:"items"`
	TotalAmount     float64            `json:"totalAmount" bson:"total_amount"`
	Status          OrderStatus        `json:"status" bson:"status"`
	ShippingAddress *string            `json:"shippingAddress" bson:"shipping_address"`
	PaymentMethod   *string            `json:"paymentMethod" bson:"payment_method"`
	Notes           *string            `json:"notes" bson:"notes"`
	CreatedAt       time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updated_at"`
}

// OrderFilter narrows order listings. Zero values mean "any".
type OrderFilter struct {
	UserID *primitive.ObjectID
	Status OrderStatus
	SortBy OrderSort
}

type OrderSort string

const (
	SortNewest OrderSort = "newest"
	SortOldest OrderSort = "oldest"
	SortStatus OrderSort = "status"
)

// TimelineStep is one entry of the customer-facing order timeline.
type TimelineStep struct {
	Step      string     `json:"step"`
	Label     string     `json:"label"`
	Date      *time.Time `json:"date"`
	Completed bool       `json:"completed"`
}

// Timeline derives the displayed progress of an order from its status.
func (o Order) Timeline() []TimelineStep {
	created, updated := o.CreatedAt, o.UpdatedAt
	steps := []TimelineStep{{Step: "placed", Label: "Order Placed", Date: &created, Completed: true}}

	switch o.Status {
	case OrderPending:
		steps = append(steps, TimelineStep{Step: "confirmed", Label: "Awaiting Confirmation"})
	case OrderConfirmed, OrderShipped, OrderDelivered:
		steps = append(steps, TimelineStep{Step: "confirmed", Label: "Order Confirmed", Date: &updated, Completed: true})
	}
	if o.Status == OrderShipped || o.Status == OrderDelivered {
		steps = append(steps, TimelineStep{Step: "shipped", Label: "Order Shipped", Date: &updated, Completed: true})
	}
	if o.Status == OrderDelivered {
		steps = append(steps, TimelineStep{Step: "delivered", Label: "Order Delivered", Date: &updated, Completed: true})
	}
	if o.Status == OrderCancelled {
		steps = append(steps, TimelineStep{Step: "cancelled", Label: "Order Cancelled", Date: &updated, Completed: true})
	}
	return steps
}
