package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"github.com/ariefcatur/lexshelf-orders/internal/metrics"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"strings"
)

type Stage string

const (
	StageReceived  Stage = "received"
	StageValidated Stage = "validated"
	StageReserved  Stage = "reserved"
	StageCommitted Stage = "committed"
)

// Request is what the checkout page submits. Any client-side total is ignored.
type Request struct {
	Customer      orders.Customer      `json:"customer"`
	Items         []orders.CartLine    `json:"items"`
	PaymentMethod orders.PaymentMethod `json:"payment_method"`
	Notes         string               `json:"notes,omitempty"`
}

// Placer runs one order placement: validate, reserve, commit.
type Placer struct {
	Validator *Validator
	Reserver  *Reserver
	Writer    *Writer
	Metrics   *metrics.Collector
}

// validate caches struct metadata and is safe for concurrent use.
var validate = validator.New()

// NewPlacer wires the placement pipeline. ledger may be nil.
func NewPlacer(catalog Catalog, store OrderStore, ledger Ledger, numbers orders.NumberGenerator, m *metrics.Collector) *Placer {
	if numbers == nil {
		numbers = orders.ClockNumbers{}
	}
	return &Placer{
		Validator: &Validator{Catalog: catalog},
		Reserver:  &Reserver{Catalog: catalog, Ledger: ledger, Metrics: m},
		Writer:    &Writer{Orders: store, Numbers: numbers},
		Metrics:   m,
	}
}

// Place returns the committed order or a *Failure. Once stock has been reserved,
// any later failure (including the caller going away) releases it before
// returning.
func (p *Placer) Place(ctx context.Context, req Request) (*orders.Order, error) {
	stage := StageReceived
	log := zap.L().With(zap.String("customer_ref", customerRef(req.Customer.Email)), zap.Int("lines", len(req.Items)))

	fail := func(err error) (*orders.Order, error) {
		var f *Failure
		if !errors.As(err, &f) {
			f = &Failure{Reason: ErrWrite, Err: err}
		}
		p.Metrics.RecordRejected(f.Code())
		fields := []zap.Field{zap.String("stage", string(stage)), zap.String("code", f.Code()), zap.Error(f)}
		if f.ProductID != "" {
			fields = append(fields, zap.String("product_id", f.ProductID))
		}
		if errors.Is(f, ErrRollbackFailed) {
			log.Error("order placement failed with stock drift", fields...)
		} else {
			log.Info("order placement failed", fields...)
		}
		return nil, f
	}

	if err := p.checkRequest(&req); err != nil {
		return fail(err)
	}

	lines, err := p.Validator.Validate(ctx, req.Items)
	if err != nil {
		return fail(err)
	}
	stage = StageValidated

	res, err := p.Reserver.Reserve(ctx, lines)
	if err != nil {
		var f *Failure
		if errors.As(err, &f) && f.Reason == ErrReservationConflict {
			p.fillAvailable(ctx, f)
		}
		return fail(err)
	}
	stage = StageReserved

	if err := ctx.Err(); err != nil {
		return fail(p.abandon(ctx, res, &Failure{Reason: ErrCancelled, Err: err}))
	}

	order, err := p.Writer.Commit(ctx, req.Customer, lines, req.PaymentMethod, req.Notes, res)
	if err != nil {
		return fail(p.abandon(ctx, res, err))
	}
	stage = StageCommitted

	p.Metrics.RecordPlaced()
	log.Info("order placed",
		zap.String("order_number", order.OrderNumber),
		zap.String("reservation_id", order.ReservationID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.String("stage", string(stage)))
	return order, nil
}

// abandon releases res after a post-reservation failure and folds a failed
// release into the returned error.
func (p *Placer) abandon(ctx context.Context, res *orders.Reservation, cause error) error {
	relErr := p.Reserver.Release(context.WithoutCancel(ctx), res)
	if relErr == nil {
		return cause
	}
	var f *Failure
	if !errors.As(cause, &f) {
		f = &Failure{Reason: ErrWrite, Err: cause}
	}
	f.Err = errors.Join(f.Err, relErr)
	return f
}

// fillAvailable looks up the stock left after a lost race so the message can say
// how many copies remain. Best effort.
func (p *Placer) fillAvailable(ctx context.Context, f *Failure) {
	prod, err := p.Validator.Catalog.FindProduct(context.WithoutCancel(ctx), f.ProductID)
	if err != nil {
		return
	}
	f.Title, f.Available = prod.Title, prod.Stock
}

func (p *Placer) checkRequest(req *Request) error {
	req.Customer.Email = strings.TrimSpace(req.Customer.Email)
	if req.Customer.Address.Country == "" {
		req.Customer.Address.Country = "India"
	}
	if err := validate.Struct(req.Customer); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return invalid("customer %s is %s", strings.ToLower(verrs[0].Field()), describeTag(verrs[0].Tag()))
		}
		return invalid("customer details are incomplete")
	}
	if req.PaymentMethod == "" {
		return invalid("payment method is required")
	}
	if !req.PaymentMethod.Supported() {
		return invalid("payment method %s is not supported, only cash on delivery is available", req.PaymentMethod)
	}
	return nil
}

// customerRef is a stable pseudonym for an email address, so log lines for one
// shopper can be correlated without recording the address itself.
func customerRef(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:6])
}

func describeTag(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "email":
		return "not a valid email address"
	default:
		return "invalid"
	}
}
