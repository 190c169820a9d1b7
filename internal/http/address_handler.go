package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
)

type Addresses interface {
	List(ctx context.Context, userID primitive.ObjectID) ([]domain.Address, error)
	Add(ctx context.Context, userID primitive.ObjectID, addr domain.Address) (*domain.Address, error)
	Update(ctx context.Context, userID primitive.ObjectID, addr domain.Address) error
	Delete(ctx context.Context, userID, addressID primitive.ObjectID) error
	SetDefault(ctx context.Context, userID, addressID primitive.ObjectID) error
}

type AddressHandler struct {
	addresses Addresses
}

func NewAddressHandler(addresses Addresses) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	addrs, err := h.addresses.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if addrs == nil {
		addrs = []domain.Address{}
	}

	respondJSON(w, http.StatusOK, addrs)
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var addr domain.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	created, err := h.addresses.Add(r.Context(), userID, addr)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, addressID, ok := h.callerAndAddress(w, r)
	if !ok {
		return
	}

	var addr domain.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	addr.ID = addressID

	if err := h.addresses.Update(r.Context(), userID, addr); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, addressID, ok := h.callerAndAddress(w, r)
	if !ok {
		return
	}

	if err := h.addresses.Delete(r.Context(), userID, addressID); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	userID, addressID, ok := h.callerAndAddress(w, r)
	if !ok {
		return
	}

	if err := h.addresses.SetDefault(r.Context(), userID, addressID); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AddressHandler) callerAndAddress(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, primitive.ObjectID, bool) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}

	addressID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "addressId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "addressId must be a valid object id")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}

	return userID, addressID, true
}
