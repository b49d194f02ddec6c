package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"ordersvc/internal/apperrors"
	"ordersvc/internal/models"
	"ordersvc/internal/services"
	"ordersvc/pkg/metrics"
	"ordersvc/pkg/rabbitmq"
)

// Inbound patterns this service answers or consumes.
const (
	PatternCreateOrder        = "create_order"
	PatternFindAllOrders      = "find_all_orders"
	PatternFindOrder          = "find_order"
	PatternFindOrdersByStatus = "find_orders_by_status"
	PatternChangeOrderStatus  = "change_order_status"
	PatternPaymentSucceeded   = "payment.succeeded"
)

// OrderOperations is what the handler needs from the order service.
type OrderOperations interface {
	Create(ctx context.Context, items []services.OrderItemInput) (*services.OrderWithProducts, error)
	CreatePaymentSession(ctx context.Context, order *services.OrderWithProducts) (json.RawMessage, error)
	FindOne(ctx context.Context, id string) (*services.OrderWithProducts, error)
	FindAll(ctx context.Context, page, limit int, status *models.OrderStatus) (*services.OrderPage, error)
	FindByStatus(ctx context.Context, page, limit int, status models.OrderStatus) (*services.OrderPage, error)
	ChangeStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
	Settle(ctx context.Context, in services.SettleInput) (*models.Order, error)
}

// Broker is the inbound side of the messaging client.
type Broker interface {
	HandleRequest(pattern string, handler func(body []byte) ([]byte, error)) error
	Subscribe(pattern string, handler func(body []byte) error) error
}

// OrderHandler binds broker patterns to order operations. It owns payload
// decoding and validation; the service below it only sees well-formed input.
type OrderHandler struct {
	service  OrderOperations
	validate *validator.Validate
	metrics  *metrics.OrderMetrics
}

// NewOrderHandler creates a new OrderHandler. Metrics may be nil in tests.
func NewOrderHandler(service OrderOperations, m *metrics.OrderMetrics) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		metrics:  m,
	}
}

// Register binds every inbound pattern on the broker.
func (h *OrderHandler) Register(mq Broker) error {
	requestHandlers := map[string]func([]byte) ([]byte, error){
		PatternCreateOrder:        h.CreateOrder,
		PatternFindAllOrders:      h.FindAllOrders,
		PatternFindOrder:          h.FindOrder,
		PatternFindOrdersByStatus: h.FindOrdersByStatus,
		PatternChangeOrderStatus:  h.ChangeOrderStatus,
	}
	for pattern, handler := range requestHandlers {
		if err := mq.HandleRequest(pattern, handler); err != nil {
			return err
		}
	}
	return mq.Subscribe(PatternPaymentSucceeded, h.PaymentSucceeded)
}

type orderItemDTO struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type createOrderDTO struct {
	Items []orderItemDTO `json:"items" validate:"required,min=1,dive"`
}

type orderPaginationDTO struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit" validate:"required,gt=0"`
	Status string `json:"status"`
}

// status resolves the optional filter, rejecting unknown statuses.
func (d orderPaginationDTO) status() (*models.OrderStatus, error) {
	if d.Status == "" {
		return nil, nil
	}
	s := models.OrderStatus(d.Status)
	if !s.Valid() {
		return nil, apperrors.New(apperrors.KindInvalidInput, "%s is not a valid order status", d.Status)
	}
	return &s, nil
}

type changeOrderStatusDTO struct {
	ID     string `json:"id" validate:"required,uuid4"`
	Status string `json:"status" validate:"required,oneof=PENDING PAID DELIVERED CANCELLED"`
}

type paidOrderDTO struct {
	OrderID          string `json:"orderId" validate:"required,uuid4"`
	ProviderChargeID string `json:"providerChargeId" validate:"required"`
	ReceiptURL       string `json:"receiptUrl" validate:"required,url"`
}

// CreateOrder handles create_order: create the order, then request a payment
// session for it. The two steps are not atomic; a payment failure after a
// successful create returns the failure while the order stays PENDING.
func (h *OrderHandler) CreateOrder(body []byte) ([]byte, error) {
	var dto createOrderDTO
	if err := h.decode(body, &dto); err != nil {
		return nil, h.reject(PatternCreateOrder, err)
	}

	items := make([]services.OrderItemInput, 0, len(dto.Items))
	for _, item := range dto.Items {
		items = append(items, services.OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	ctx := context.Background()
	order, err := h.service.Create(ctx, items)
	if err != nil {
		return nil, h.reject(PatternCreateOrder, err)
	}

	session, err := h.service.CreatePaymentSession(ctx, order)
	if err != nil {
		return nil, h.reject(PatternCreateOrder, err)
	}

	return h.reply(PatternCreateOrder, map[string]any{
		"order":          order,
		"paymentSession": session,
	})
}

// FindAllOrders handles find_all_orders.
func (h *OrderHandler) FindAllOrders(body []byte) ([]byte, error) {
	var dto orderPaginationDTO
	if err := h.decode(body, &dto); err != nil {
		return nil, h.reject(PatternFindAllOrders, err)
	}

	status, err := dto.status()
	if err != nil {
		return nil, h.reject(PatternFindAllOrders, err)
	}

	page, err := h.service.FindAll(context.Background(), dto.Page, dto.Limit, status)
	if err != nil {
		return nil, h.reject(PatternFindAllOrders, err)
	}
	return h.reply(PatternFindAllOrders, page)
}

// FindOrder handles find_order; the payload is the bare order id.
func (h *OrderHandler) FindOrder(body []byte) ([]byte, error) {
	var id string
	if err := json.Unmarshal(body, &id); err != nil {
		return nil, h.reject(PatternFindOrder,
			apperrors.Wrap(apperrors.KindInvalidInput, err, "order id must be a string"))
	}

	order, err := h.service.FindOne(context.Background(), id)
	if err != nil {
		return nil, h.reject(PatternFindOrder, err)
	}
	return h.reply(PatternFindOrder, order)
}

// FindOrdersByStatus handles find_orders_by_status; status is mandatory here.
func (h *OrderHandler) FindOrdersByStatus(body []byte) ([]byte, error) {
	var dto orderPaginationDTO
	if err := h.decode(body, &dto); err != nil {
		return nil, h.reject(PatternFindOrdersByStatus, err)
	}
	status, err := dto.status()
	if err != nil {
		return nil, h.reject(PatternFindOrdersByStatus, err)
	}
	if status == nil {
		return nil, h.reject(PatternFindOrdersByStatus,
			apperrors.New(apperrors.KindInvalidInput, "status is required"))
	}

	page, err := h.service.FindByStatus(context.Background(), dto.Page, dto.Limit, *status)
	if err != nil {
		return nil, h.reject(PatternFindOrdersByStatus, err)
	}
	return h.reply(PatternFindOrdersByStatus, page)
}

// ChangeOrderStatus handles change_order_status.
func (h *OrderHandler) ChangeOrderStatus(body []byte) ([]byte, error) {
	var dto changeOrderStatusDTO
	if err := h.decode(body, &dto); err != nil {
		return nil, h.reject(PatternChangeOrderStatus, err)
	}

	order, err := h.service.ChangeStatus(context.Background(), dto.ID, models.OrderStatus(dto.Status))
	if err != nil {
		return nil, h.reject(PatternChangeOrderStatus, err)
	}
	return h.reply(PatternChangeOrderStatus, order)
}

// PaymentSucceeded consumes the payment.succeeded event. There is no reply
// channel: failures are logged, and only retryable ones requeue the event.
// Malformed payloads and unknown orders are dropped after logging so a
// poison message cannot loop forever; duplicates are absorbed by the
// idempotent settlement path.
func (h *OrderHandler) PaymentSucceeded(body []byte) error {
	var dto paidOrderDTO
	if err := h.decode(body, &dto); err != nil {
		slog.Error("dropping malformed payment.succeeded event", "error", err)
		h.countSettlement("dropped")
		return nil
	}

	_, err := h.service.Settle(context.Background(), services.SettleInput{
		OrderID:          dto.OrderID,
		ProviderChargeID: dto.ProviderChargeID,
		ReceiptURL:       dto.ReceiptURL,
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			slog.Error("dropping payment.succeeded for unknown order",
				"order_id", dto.OrderID, "error", err)
			h.countSettlement("dropped")
			return nil
		}
		h.countSettlement("failed")
		return err
	}

	h.countSettlement("settled")
	return nil
}

// decode unmarshals and validates an inbound payload.
func (h *OrderHandler) decode(body []byte, dto any) error {
	if err := json.Unmarshal(body, dto); err != nil {
		return apperrors.Wrap(apperrors.KindInvalidInput, err, "malformed payload")
	}
	if err := h.validate.Struct(dto); err != nil {
		return apperrors.Wrap(apperrors.KindInvalidInput, err, "invalid payload: %v", err)
	}
	return nil
}

// reply marshals a successful result and counts it.
func (h *OrderHandler) reply(pattern string, result any) ([]byte, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, h.reject(pattern, apperrors.Wrap(apperrors.KindInternal, err, "failed to encode reply"))
	}
	h.countMessage(pattern, "ok")
	return data, nil
}

// reject logs the failure with its full cause chain and converts it into the
// wire error carrying only the taxonomy status and message.
func (h *OrderHandler) reject(pattern string, err error) error {
	slog.Error("request failed", "pattern", pattern, "error", err)
	h.countMessage(pattern, "error")

	var remote *rabbitmq.RemoteError
	if errors.As(err, &remote) {
		return remote
	}
	return &rabbitmq.RemoteError{
		StatusCode: apperrors.KindOf(err).Status(),
		Message:    apperrors.MessageOf(err),
	}
}

func (h *OrderHandler) countMessage(pattern, outcome string) {
	if h.metrics != nil {
		h.metrics.Messages.WithLabelValues(pattern, outcome).Inc()
	}
}

func (h *OrderHandler) countSettlement(result string) {
	if h.metrics != nil {
		h.metrics.Settlements.WithLabelValues(result).Inc()
	}
	h.countMessage(PatternPaymentSucceeded, resultOutcome(result))
}

func resultOutcome(result string) string {
	if result == "settled" {
		return "ok"
	}
	return "error"
}
