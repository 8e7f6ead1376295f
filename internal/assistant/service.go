// Package assistant exposes the tools the conversational agent calls: product
// search, cart management, checkout and the fallback reply. Every tool
// answers with customer-facing text; errors are logged and never returned.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/cart"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/checkout"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/fallback"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/retrieval"
)

// Tool replies.
const (
	MsgCartEmpty       = "🛒 O carrinho está vazio."
	MsgCartHeader      = "🛒 **Carrinho Atual:**"
	MsgAddFailed       = "❌ Erro ao adicionar item. Tente novamente."
	MsgRemoveFailed    = "❌ Erro ao remover item (índice inválido?)."
	MsgCartReadFailed  = "❌ Erro ao consultar o carrinho. Tente novamente."
	MsgCartCleared     = "✅ Carrinho esvaziado."
	MsgClearFailed     = "❌ Erro ao esvaziar o carrinho. Tente novamente."
	MsgCheckoutEmpty   = "❌ O carrinho está vazio! Adicione itens antes de finalizar."
	MsgCheckoutFailed  = "❌ Não foi possível enviar o pedido agora. Tente novamente."
	MsgMissingPhone    = "❌ Telefone do cliente não informado."
	MsgMissingProduct  = "❌ Informe o nome do produto."
	MsgInvalidQuantity = "❌ Quantidade inválida."
)

// Searcher is the product search used by the Search tool.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*retrieval.SearchOutcome, error)
	SearchText(ctx context.Context, query string) string
}

// AddItemRequest is the add-to-cart tool input. For items sold by weight,
// Quantity is the estimated kg, Units the piece count and Price the price
// per kg; otherwise Units is 0 and Quantity the item count.
type AddItemRequest struct {
	Product  string  `json:"produto"`
	Quantity float64 `json:"quantidade"`
	Units    int     `json:"unidades"`
	Note     string  `json:"observacao"`
	Price    float64 `json:"preco"`
}

// FinalizeRequest is the checkout tool input.
type FinalizeRequest struct {
	Customer string `json:"cliente"`
	Phone    string `json:"telefone"`
	Address  string `json:"endereco"`
	Payment  string `json:"forma_pagamento"`
	Note     string `json:"observacao"`
}

// Service implements the agent tools.
type Service struct {
	searcher Searcher
	store    cart.Store
	marker   cart.OrderMarker
	locker   cart.Locker
	checkout *checkout.Engine
	logger   *observability.Logger
}

// NewService creates the tool facade. locker must be the one the checkout
// engine holds during finalize.
func NewService(searcher Searcher, store cart.Store, marker cart.OrderMarker, locker cart.Locker, checkoutEngine *checkout.Engine, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		searcher: searcher,
		store:    store,
		marker:   marker,
		locker:   locker,
		checkout: checkoutEngine,
		logger:   logger,
	}
}

// Search returns the formatted product list for query.
func (s *Service) Search(ctx context.Context, query string) string {
	return s.searcher.SearchText(ctx, query)
}

// SearchOutcome runs a search and returns the typed result.
func (s *Service) SearchOutcome(ctx context.Context, query string, limit int) (*retrieval.SearchOutcome, error) {
	return s.searcher.Search(ctx, query, limit)
}

// AddItem appends an item to the customer's cart.
func (s *Service) AddItem(ctx context.Context, phone string, req AddItemRequest) string {
	log := s.logger.WithContext(ctx).WithCustomer(phone).WithOperation("add_item")

	switch {
	case strings.TrimSpace(phone) == "":
		return MsgMissingPhone
	case strings.TrimSpace(req.Product) == "":
		return MsgMissingProduct
	case req.Quantity <= 0 || req.Units < 0 || req.Price < 0:
		return MsgInvalidQuantity
	}

	item := cart.Item{
		Product:  strings.TrimSpace(req.Product),
		Quantity: req.Quantity,
		Units:    req.Units,
		Note:     strings.TrimSpace(req.Note),
		Price:    req.Price,
	}

	err := s.withLock(ctx, phone, func() error {
		return s.store.AddItem(ctx, phone, item)
	})
	if err != nil {
		log.Error().Err(err).Str("product", item.Product).Msg("Add item failed")
		return MsgAddFailed
	}

	log.Info().Str("product", item.Product).Float64("quantity", item.Quantity).Int("units", item.Units).Msg("Item added")
	if item.WeightTracked() {
		return fmt.Sprintf("✅ Item '%s' (%d unidades, ~%.3fkg) adicionado ao carrinho.", item.Product, item.Units, item.Quantity)
	}
	return fmt.Sprintf("✅ Item '%s' (%s) adicionado ao carrinho.", item.Product, formatQuantity(item.Quantity))
}

// Items returns the customer's cart.
func (s *Service) Items(ctx context.Context, phone string) ([]cart.Item, error) {
	return s.store.ListItems(ctx, phone)
}

// ViewCart renders the customer's cart with subtotals and the estimated total.
func (s *Service) ViewCart(ctx context.Context, phone string) string {
	items, err := s.store.ListItems(ctx, phone)
	if err != nil {
		s.logger.WithContext(ctx).WithCustomer(phone).Error().Err(err).Msg("List cart failed")
		return MsgCartReadFailed
	}
	return FormatCart(items)
}

// FormatCart renders items the way ViewCart does.
func FormatCart(items []cart.Item) string {
	if len(items) == 0 {
		return MsgCartEmpty
	}

	lines := make([]string, 0, len(items)+2)
	lines = append(lines, MsgCartHeader)
	for i, it := range items {
		line := fmt.Sprintf("%d. %s (x%s)", i+1, it.Product, formatQuantity(it.Quantity))
		if it.Price > 0 {
			line += " - R$ " + it.Subtotal().StringFixed(2)
		}
		if it.Note != "" {
			line += " [Obs: " + it.Note + "]"
		}
		lines = append(lines, line)
	}

	if total := cart.Total(items); total.IsPositive() {
		lines = append(lines, "\n💰 **Total Estimado:** R$ "+total.StringFixed(2))
	}
	return strings.Join(lines, "\n")
}

// RemoveItem deletes the item at the one-based index shown by ViewCart.
func (s *Service) RemoveItem(ctx context.Context, phone string, index int) string {
	err := s.withLock(ctx, phone, func() error {
		return s.store.RemoveItem(ctx, phone, index)
	})
	if err != nil {
		log := s.logger.WithContext(ctx).WithCustomer(phone)
		if errors.Is(err, domain.ErrInvalidItemIndex) {
			log.Info().Int("index", index).Msg("Remove with invalid index")
		} else {
			log.Error().Err(err).Int("index", index).Msg("Remove item failed")
		}
		return MsgRemoveFailed
	}
	return fmt.Sprintf("✅ Item %d removido do carrinho.", index)
}

// ClearCart empties the customer's cart.
func (s *Service) ClearCart(ctx context.Context, phone string) string {
	err := s.withLock(ctx, phone, func() error {
		return s.store.Clear(ctx, phone)
	})
	if err != nil {
		s.logger.WithContext(ctx).WithCustomer(phone).Error().Err(err).Msg("Clear cart failed")
		return MsgClearFailed
	}
	return MsgCartCleared
}

// OrderSent reports whether an order was submitted for phone recently.
func (s *Service) OrderSent(ctx context.Context, phone string) (bool, error) {
	if s.marker == nil {
		return false, nil
	}
	return s.marker.OrderSent(ctx, phone)
}

// Finalize submits the cart as an order and returns the reply text.
func (s *Service) Finalize(ctx context.Context, req FinalizeRequest) string {
	text, _ := s.FinalizeOrder(ctx, req)
	return text
}

// FinalizeOrder is Finalize that also reports whether the order API
// confirmed the order.
func (s *Service) FinalizeOrder(ctx context.Context, req FinalizeRequest) (string, bool) {
	if strings.TrimSpace(req.Phone) == "" {
		return MsgMissingPhone, false
	}

	res, err := s.checkout.Finalize(ctx, checkout.Customer{
		Name:    req.Customer,
		Phone:   req.Phone,
		Address: req.Address,
	}, req.Payment, req.Note)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyCart) {
			return MsgCheckoutEmpty, false
		}
		s.logger.WithContext(ctx).WithCustomer(req.Phone).Error().Err(err).Msg("Finalize failed")
		return MsgCheckoutFailed, false
	}
	return res.Response, res.Success
}

// Synthesize builds a reply from a turn's tool outputs.
func (s *Service) Synthesize(toolOutputs []string) string {
	reply := fallback.Decide(fallback.ClassifyAll(toolOutputs))
	s.logger.Info().Str("rule", string(reply.Rule)).Int("tool_outputs", len(toolOutputs)).Msg("Fallback reply synthesized")
	return reply.Text
}

func (s *Service) withLock(ctx context.Context, phone string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, phone)
	if err != nil {
		return domain.StorageError("lock cart", err)
	}
	defer unlock()
	return fn()
}

// formatQuantity prints whole quantities without decimals.
func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
