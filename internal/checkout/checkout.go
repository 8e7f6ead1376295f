// Package checkout turns a customer's cart into an order submission.
package checkout

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/cart"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/orders"
)

const defaultAddress = "A combinar"

// Customer identifies who the order is for.
type Customer struct {
	Name    string `json:"nome"`
	Phone   string `json:"telefone"`
	Address string `json:"endereco"`
}

// Result describes a finalize attempt.
type Result struct {
	// Response is the customer-facing summary of the order API's answer.
	Response  string          `json:"response"`
	Submitted bool            `json:"submitted"`
	Success   bool            `json:"success"`
	Payload   orders.Payload  `json:"payload"`
	Total     decimal.Decimal `json:"total"`
	// Coerced counts unit-tracked items whose quantity was forced to 1.
	Coerced int `json:"coerced"`
}

// Engine finalizes orders.
type Engine struct {
	store     cart.Store
	marker    cart.OrderMarker
	locker    cart.Locker
	submitter orders.Submitter
	logger    *observability.Logger
}

// NewEngine creates a checkout engine. locker must be the one used for
// cart additions so an add cannot interleave with a finalize.
func NewEngine(store cart.Store, marker cart.OrderMarker, locker cart.Locker, submitter orders.Submitter, logger *observability.Logger) *Engine {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Engine{
		store:     store,
		marker:    marker,
		locker:    locker,
		submitter: submitter,
		logger:    logger,
	}
}

// Finalize submits the customer's cart. An empty cart fails with
// domain.ErrEmptyCart without calling the order API. The cart is cleared
// and the order marked as sent only when the order API confirmed it.
func (e *Engine) Finalize(ctx context.Context, customer Customer, payment, note string) (*Result, error) {
	log := e.logger.WithContext(ctx).WithCustomer(customer.Phone).WithOperation("finalize")

	unlock, err := e.locker.Lock(ctx, customer.Phone)
	if err != nil {
		return nil, domain.StorageError("lock cart", err)
	}
	defer unlock()

	items, err := e.store.ListItems(ctx, customer.Phone)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.InputError("finalize", domain.ErrEmptyCart)
	}

	payload, total, coerced := BuildPayload(customer, payment, note, items)
	if coerced > 0 {
		log.Warn().Int("items", coerced).Msg("Fractional unit quantities coerced to 1")
	}

	resp, err := e.submitter.Submit(ctx, payload)
	if err != nil {
		log.Error().Err(err).Msg("Order submission failed")
		return nil, err
	}

	res := &Result{
		Response:  resp.Text,
		Submitted: true,
		Success:   resp.OK,
		Payload:   payload,
		Total:     total,
		Coerced:   coerced,
	}
	if !res.Success {
		log.Warn().Int("status", resp.StatusCode).Str("response", resp.Text).Msg("Order API did not confirm the order")
		return res, nil
	}

	if err := e.store.Clear(ctx, customer.Phone); err != nil {
		log.Error().Err(err).Msg("Order sent but cart not cleared")
		return res, nil
	}
	if e.marker != nil {
		if err := e.marker.MarkOrderSent(ctx, customer.Phone); err != nil {
			log.Error().Err(err).Msg("Order sent but not marked")
		}
	}

	log.Info().Int("items", len(items)).Str("total", total.StringFixed(2)).Msg("Order finalized")
	return res, nil
}

// BuildPayload converts cart items to an order payload and returns it with
// the estimated total and the number of coerced unit quantities.
//
// Weight-tracked items are submitted as their unit count with a note giving
// the estimated weight and value. Unit-tracked items keep a positive whole
// quantity; anything else becomes 1.
func BuildPayload(customer Customer, payment, note string, items []cart.Item) (orders.Payload, decimal.Decimal, int) {
	address := strings.TrimSpace(customer.Address)
	if address == "" {
		address = defaultAddress
	}

	payload := orders.Payload{
		CustomerName: customer.Name,
		Phone:        customer.Phone,
		Address:      address,
		Payment:      payment,
		Note:         note,
		Items:        make([]orders.Line, 0, len(items)),
	}

	total := decimal.Zero
	coerced := 0

	for _, it := range items {
		subtotal := it.Subtotal()
		total = total.Add(subtotal)

		price, _ := decimal.NewFromFloat(it.Price).Round(2).Float64()
		line := orders.Line{
			ProductName: productName(it),
			UnitPrice:   price,
			Note:        it.Note,
		}

		if it.WeightTracked() {
			line.Quantity = it.Units
			line.Note = joinNote(it.Note, WeightNote(it.Quantity, subtotal))
		} else {
			q, ok := wholeQuantity(it.Quantity)
			if !ok {
				coerced++
			}
			line.Quantity = q
		}

		payload.Items = append(payload.Items, line)
	}

	return payload, total.Round(2), coerced
}

// WeightNote is appended to weight-tracked items so the store re-weighs
// them before charging.
func WeightNote(kg float64, value decimal.Decimal) string {
	return fmt.Sprintf("Peso estimado: %.3fkg (~R$%s). PESAR para confirmar valor.", kg, value.StringFixed(2))
}

func joinNote(existing, generated string) string {
	if existing == "" {
		return generated
	}
	return existing + ". " + generated
}

func wholeQuantity(q float64) (int, bool) {
	if q < 1 || q != math.Trunc(q) || q > math.MaxInt32 {
		return 1, false
	}
	return int(q), true
}

func productName(it cart.Item) string {
	if strings.TrimSpace(it.Product) == "" {
		return "Produto"
	}
	return it.Product
}
