package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/cart"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
)

// CartHandler handles cart and checkout requests.
type CartHandler struct {
	logger  *observability.Logger
	service *assistant.Service
}

// NewCartHandler creates a cart handler.
func NewCartHandler(logger *observability.Logger, service *assistant.Service) *CartHandler {
	return &CartHandler{logger: logger, service: service}
}

// CartResponseDTO is the cart listing.
type CartResponseDTO struct {
	Phone     string      `json:"phone"`
	Items     []cart.Item `json:"items"`
	Total     string      `json:"total"`
	Text      string      `json:"text"`
	OrderSent bool        `json:"orderSent"`
}

// CheckoutRequestDTO is the checkout body; the phone comes from the path.
type CheckoutRequestDTO struct {
	Customer string `json:"cliente"`
	Address  string `json:"endereco"`
	Payment  string `json:"forma_pagamento"`
	Note     string `json:"observacao"`
}

// List handles GET /carts/{phone}/items.
func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	phone := chi.URLParam(r, "phone")

	items, err := h.service.Items(ctx, phone)
	if err != nil {
		h.logger.WithContext(ctx).WithCustomer(phone).Error().Err(err).Msg("List cart failed")
		writeError(w, http.StatusBadGateway, assistant.MsgCartReadFailed, "")
		return
	}

	sent, err := h.service.OrderSent(ctx, phone)
	if err != nil {
		h.logger.WithContext(ctx).WithCustomer(phone).Warn().Err(err).Msg("Order marker lookup failed")
	}

	if items == nil {
		items = []cart.Item{}
	}
	writeJSON(w, http.StatusOK, CartResponseDTO{
		Phone:     phone,
		Items:     items,
		Total:     cart.Total(items).StringFixed(2),
		Text:      assistant.FormatCart(items),
		OrderSent: sent,
	})
}

// Add handles POST /carts/{phone}/items.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req assistant.AddItemRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	text := h.service.AddItem(r.Context(), chi.URLParam(r, "phone"), req)
	writeJSON(w, http.StatusOK, TextResponse{Text: text, OK: confirmed(text)})
}

// Remove handles DELETE /carts/{phone}/items/{index}.
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be a number", "")
		return
	}

	text := h.service.RemoveItem(r.Context(), chi.URLParam(r, "phone"), index)
	writeJSON(w, http.StatusOK, TextResponse{Text: text, OK: confirmed(text)})
}

// Clear handles DELETE /carts/{phone}/items.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	text := h.service.ClearCart(r.Context(), chi.URLParam(r, "phone"))
	writeJSON(w, http.StatusOK, TextResponse{Text: text, OK: confirmed(text)})
}

// Checkout handles POST /carts/{phone}/checkout.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	text, ok := h.service.FinalizeOrder(r.Context(), assistant.FinalizeRequest{
		Customer: req.Customer,
		Phone:    chi.URLParam(r, "phone"),
		Address:  req.Address,
		Payment:  req.Payment,
		Note:     req.Note,
	})
	writeJSON(w, http.StatusOK, TextResponse{Text: text, OK: ok})
}

func confirmed(text string) bool {
	return strings.HasPrefix(text, "✅")
}
