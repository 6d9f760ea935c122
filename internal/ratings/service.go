package ratings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/Syntia28/nikos/internal/orders"
	product "github.com/Syntia28/nikos/internal/products"
	pkgerrors "github.com/Syntia28/nikos/pkg/errors"
	"github.com/Syntia28/nikos/pkg/eventbus"
	"github.com/Syntia28/nikos/pkg/logger"
	"github.com/Syntia28/nikos/pkg/types"
)

// Score bounds and user-facing messages.
const (
	MinScore = 1
	MaxScore = 5

	MsgScoreRequired = "Por favor selecciona una calificación"
	MsgScoreRange    = "La calificación debe estar entre 1 y 5"
	MsgNotRateable   = "Solo puedes calificar pedidos completados o entregados"
	MsgAlreadyRated  = "Este pedido ya fue calificado"
)

// SubmitInput is one rating of a finished order.
type SubmitInput struct {
	UserID    string
	UserEmail string
	UserName  string
	OrderID   string
	Score     int
	Comment   string
}

// Result reports which product writes landed.
type Result struct {
	OrderID        string         `json:"order_id"`
	Rating         product.Rating `json:"rating"`
	RatedProducts  []string       `json:"rated_products"`
	FailedProducts []string       `json:"failed_products,omitempty"`
	OrderStamped   bool           `json:"order_stamped"`
}

// SubmittedEvent is broadcast once every write of a submission succeeded.
type SubmittedEvent struct {
	OrderID    string         `json:"order_id"`
	ProductIDs []string       `json:"product_ids"`
	Rating     product.Rating `json:"rating"`
}

// Service submits post-purchase ratings.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*Result, error)
}

type ratingAppender interface {
	AppendRating(ctx context.Context, productID string, rating product.Rating, merge product.MergeFunc) (*product.Product, error)
}

type orderStore interface {
	FindByID(ctx context.Context, id string) (*orders.Record, error)
	SetRating(ctx context.Context, id string, rating orders.Calificacion) error
}

type eventEmitter interface {
	Emit(ctx context.Context, name string, payload any)
}

type ratingMetrics interface {
	IncRating(score int)
}

type service struct {
	products ratingAppender
	orders   orderStore
	bus      eventEmitter
	logg     *logger.Logger
	metrics  ratingMetrics
	now      func() time.Time
}

func NewService(products ratingAppender, ordersRepo orderStore, bus eventEmitter, logg *logger.Logger, metrics ratingMetrics) (Service, error) {
	if products == nil {
		return nil, fmt.Errorf("product service required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		products: products,
		orders:   ordersRepo,
		bus:      bus,
		logg:     logg,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit appends the rating to every distinct product of the order and stamps the order.
// Each write is independent; failures are aggregated and earlier writes are kept.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*Result, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, pkgerrors.SignInRequired()
	}
	if input.Score < MinScore {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, MsgScoreRequired)
	}
	if input.Score > MaxScore {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, MsgScoreRange)
	}
	ctx = s.logg.WithOrderID(s.logg.WithUserID(ctx, input.UserID), input.OrderID)

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	if !order.Status().IsRateable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, MsgNotRateable)
	}
	if order.IsRated() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, MsgAlreadyRated)
	}

	now := types.NewTimestamp(s.now())
	rating := product.Rating{
		UserID:    input.UserID,
		UserEmail: input.UserEmail,
		UserName:  input.UserName,
		Score:     input.Score,
		Comment:   strings.TrimSpace(input.Comment),
		Fecha:     now,
		CompraID:  order.ID,
	}
	result := &Result{OrderID: order.ID, Rating: rating, RatedProducts: []string{}}

	var errs error
	for _, productID := range distinctProducts(order.Items) {
		// Merge keeps a retry from appending the same compraId twice.
		if _, err := s.products.AppendRating(ctx, productID, rating, Merge); err != nil {
			s.logg.Error(s.logg.WithProductID(ctx, productID), "product rating write failed", err)
			result.FailedProducts = append(result.FailedProducts, productID)
			errs = multierr.Append(errs, fmt.Errorf("product %s: %w", productID, err))
			continue
		}
		result.RatedProducts = append(result.RatedProducts, productID)
	}

	stamp := orders.Calificacion{Score: rating.Score, Comment: rating.Comment, Fecha: now, UserID: input.UserID}
	if err := s.orders.SetRating(ctx, order.ID, stamp); err != nil {
		s.logg.Error(ctx, "order rating stamp failed", err)
		errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
	} else {
		result.OrderStamped = true
	}

	if errs != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "rating partially saved").WithDetails(result)
	}

	if s.metrics != nil {
		s.metrics.IncRating(rating.Score)
	}
	s.bus.Emit(ctx, eventbus.RatingSubmitted, SubmittedEvent{
		OrderID:    order.ID,
		ProductIDs: append([]string{}, result.RatedProducts...),
		Rating:     rating,
	})
	return result, nil
}

func distinctProducts(items []orders.LineRef) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.IDProducto]; ok {
			continue
		}
		seen[item.IDProducto] = struct{}{}
		out = append(out, item.IDProducto)
	}
	return out
}
