package handlers

import (
	"net/http"
	"strconv"

	"github.com/kitabpay/backend/internal/services"
)

type WalletHandler struct {
	transactions *services.TransactionService
	codes        *services.TransferCodeService
	validator    *services.ValidationHelper
}

func NewWalletHandler(transactions *services.TransactionService, codes *services.TransferCodeService) *WalletHandler {
	return &WalletHandler{
		transactions: transactions,
		codes:        codes,
		validator:    services.NewValidationHelper(),
	}
}

// Transfer sends money to another user
// @Summary Transfer money
// @Description Transfer money to another user by id or phone number
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{recipient=services.RecipientIdentity,amount=int64,operationId=string} true "Transfer request"
// @Success 200 {object} object{success=bool,balance=int64}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /wallet/transfer [post]
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Recipient   services.RecipientIdentity `json:"recipient"`
		Amount      int64                      `json:"amount" validate:"required,gt=0"`
		OperationID string                     `json:"operationId" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	balance, err := h.transactions.Transfer(r.Context(), userID, req.Recipient, req.Amount, req.OperationID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"balance": balance,
	})
}

// GenerateCode renders the caller's transfer QR code
// @Summary Generate transfer code
// @Description Generate a QR code other users can scan to send money to the caller
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{payload=string,image=string}
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet/code [get]
func (h *WalletHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	displayName := r.URL.Query().Get("displayName")
	payload, image, err := h.codes.Generate(r.Context(), userID, displayName)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payload": payload,
		"image":   image,
	})
}

// DecodeCode resolves a scanned transfer code
// @Summary Decode transfer code
// @Description Decode a scanned payload and resolve the recipient it names
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{payload=string} true "Scanned payload"
// @Success 200 {object} object{userId=string,phone=string,displayName=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /wallet/code/decode [post]
func (h *WalletHandler) DecodeCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payload string `json:"payload" validate:"required"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	payload, err := h.codes.Decode(req.Payload)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	recipient, err := h.codes.Resolve(r.Context(), payload)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":      recipient.ID,
		"phone":       recipient.Phone,
		"displayName": payload.DisplayName,
	})
}

// History lists the caller's ledger entries
// @Summary Transaction history
// @Description List the caller's most recent ledger entries, newest first
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of entries to return (default 50, max 100)"
// @Success 200 {object} object{entries=[]models.LedgerEntry,count=int}
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet/history [get]
func (h *WalletHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			limit = l
		}
	}

	entries, err := h.transactions.History(r.Context(), userID, limit)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// Balance reads the caller's wallet balance
// @Summary Wallet balance
// @Description Read the caller's current balance and books count
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet/balance [get]
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	acc, err := h.transactions.Balance(r.Context(), userID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, acc)
}

// AddBalance credits a user's wallet (admin only)
// @Summary Admin balance top-up
// @Description Credit a user's wallet from outside the system
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{userId=string,amount=int64,operationId=string} true "Top-up request"
// @Success 200 {object} object{success=bool,balance=int64}
// @Failure 403 {object} services.ErrorResponse
// @Router /wallet/add-balance [post]
func (h *WalletHandler) AddBalance(w http.ResponseWriter, r *http.Request) {
	adminID, ok := contextUserID(r)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		UserID      string `json:"userId" validate:"required"`
		Amount      int64  `json:"amount" validate:"required,gt=0"`
		OperationID string `json:"operationId,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	balance, err := h.transactions.AddBalance(r.Context(), adminID, req.UserID, req.Amount, req.OperationID)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"balance": balance,
	})
}
