package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kitabpay/backend/internal/services"
)

type MarketHandler struct {
	catalog      *services.CatalogService
	transactions *services.TransactionService
	validator    *services.ValidationHelper
}

func NewMarketHandler(catalog *services.CatalogService, transactions *services.TransactionService) *MarketHandler {
	return &MarketHandler{
		catalog:      catalog,
		transactions: transactions,
		validator:    services.NewValidationHelper(),
	}
}

// ListMarketplace lists available books
// @Summary List marketplace
// @Description List available listings, live advertisements first then newest first
// @Tags marketplace
// @Produce json
// @Param city query string false "Filter by city"
// @Param limit query int false "Number of listings to return (default 50)"
// @Success 200 {object} object{listings=[]models.Listing,count=int}
// @Router /marketplace [get]
func (h *MarketHandler) ListMarketplace(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	listings, err := h.catalog.Marketplace(r.Context(), city, limit)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"listings": listings,
		"count":    len(listings),
	})
}

// GetListing fetches one listing
// @Summary Get listing
// @Description Fetch a single listing by id
// @Tags marketplace
// @Produce json
// @Param listingId path string true "Listing ID"
// @Success 200 {object} models.Listing
// @Failure 404 {object} services.ErrorResponse
// @Router /marketplace/{listingId} [get]
func (h *MarketHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingId")

	listing, err := h.catalog.GetListing(r.Context(), listingID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// CreateListing offers a book directly for sale
// @Summary Create listing
// @Description Offer a book for sale without adding it to the personal library
// @Tags marketplace
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{listing=services.ListingInput,advertisement=services.AdvertisementOptions} true "Listing request"
// @Success 201 {object} models.Listing
// @Failure 400 {object} services.ErrorResponse
// @Router /marketplace [post]
func (h *MarketHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Listing       services.ListingInput          `json:"listing"`
		Advertisement *services.AdvertisementOptions `json:"advertisement,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req.Listing); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	listing, err := h.catalog.CreateDirectListing(r.Context(), userID, req.Listing, req.Advertisement)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, listing)
}

// Purchase buys a listing
// @Summary Purchase a book
// @Description Buy a listing for its asking price
// @Tags marketplace
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param listingId path string true "Listing ID"
// @Param request body object{operationId=string} true "Purchase request"
// @Success 200 {object} services.PurchaseResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /marketplace/{listingId}/purchase [post]
func (h *MarketHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	listingID := chi.URLParam(r, "listingId")

	var req struct {
		OperationID string `json:"operationId" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.transactions.Purchase(r.Context(), userID, listingID, req.OperationID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListLibrary lists the caller's personal library
// @Summary List library
// @Description List the caller's library items, newest first
// @Tags library
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{items=[]models.LibraryItem,count=int}
// @Router /library [get]
func (h *MarketHandler) ListLibrary(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	items, err := h.catalog.Library(r.Context(), userID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// AddLibraryItem adds a book to the caller's library
// @Summary Add library item
// @Description Add a personally owned book to the caller's library
// @Tags library
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.LibraryItemInput true "Library item"
// @Success 201 {object} models.LibraryItem
// @Failure 400 {object} services.ErrorResponse
// @Router /library [post]
func (h *MarketHandler) AddLibraryItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req services.LibraryItemInput
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	item, err := h.catalog.CreateLibraryItem(r.Context(), userID, req)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// PublishItem mirrors a library item into the marketplace
// @Summary Publish library item
// @Description Put a library item up for sale, optionally as an advertisement
// @Tags library
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param itemId path string true "Library item ID"
// @Param request body object{price=int64,advertisement=services.AdvertisementOptions} true "Publish request"
// @Success 200 {object} models.Listing
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /library/{itemId}/publish [post]
func (h *MarketHandler) PublishItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	itemID := chi.URLParam(r, "itemId")

	var req struct {
		Price         int64                          `json:"price" validate:"required,gt=0"`
		Advertisement *services.AdvertisementOptions `json:"advertisement,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !h.ownsItem(w, r, userID, itemID) {
		return
	}

	listing, err := h.catalog.PublishToMarketplace(r.Context(), itemID, req.Price, req.Advertisement)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// UnpublishItem removes a library item's listing
// @Summary Unpublish library item
// @Description Take a published library item off the marketplace
// @Tags library
// @Produce json
// @Security BearerAuth
// @Param itemId path string true "Library item ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} services.ErrorResponse
// @Router /library/{itemId}/unpublish [post]
func (h *MarketHandler) UnpublishItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	itemID := chi.URLParam(r, "itemId")

	if !h.ownsItem(w, r, userID, itemID) {
		return
	}

	if err := h.catalog.Unpublish(r.Context(), itemID); err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// DeleteLibraryItem removes a book from the caller's library
// @Summary Delete library item
// @Description Delete a library item, unpublishing it first when listed
// @Tags library
// @Produce json
// @Security BearerAuth
// @Param itemId path string true "Library item ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} services.ErrorResponse
// @Router /library/{itemId} [delete]
func (h *MarketHandler) DeleteLibraryItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	itemID := chi.URLParam(r, "itemId")

	if !h.ownsItem(w, r, userID, itemID) {
		return
	}

	if err := h.catalog.DeleteLibraryItem(r.Context(), itemID); err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ListPurchases lists the caller's bought books
// @Summary List purchases
// @Description List the caller's purchase records, newest first
// @Tags library
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{purchases=[]models.PurchaseRecord,count=int}
// @Router /purchases [get]
func (h *MarketHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	purchases, err := h.catalog.Purchases(r.Context(), userID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"purchases": purchases,
		"count":     len(purchases),
	})
}

// ownsItem checks that the item exists and belongs to the caller, writing the
// error response itself when it does not. A foreign item reads as not found
// so callers cannot probe other users' libraries.
func (h *MarketHandler) ownsItem(w http.ResponseWriter, r *http.Request, userID, itemID string) bool {
	item, err := h.catalog.GetLibraryItem(r.Context(), itemID)
	if err != nil {
		sendServiceError(w, err)
		return false
	}
	if item.OwnerID != userID {
		services.SendErrorResponse(w, services.ErrItemNotFound.Error(), http.StatusNotFound, nil)
		return false
	}
	return true
}
