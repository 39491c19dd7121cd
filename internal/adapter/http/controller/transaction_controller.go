package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/api-sage/txn-settlement-processor/internal/adapter/http/models"
	"github.com/api-sage/txn-settlement-processor/internal/commons"
	"github.com/api-sage/txn-settlement-processor/internal/usecase/service_interfaces"
)

type TransactionController struct {
	service service_interfaces.TransactionService
}

func NewTransactionController(service service_interfaces.TransactionService) *TransactionController {
	return &TransactionController{service: service}
}

func (c *TransactionController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	wrap := func(h http.HandlerFunc) http.Handler {
		if authMiddleware != nil {
			return authMiddleware(h)
		}
		return h
	}

	mux.Handle("POST /transaction/register", wrap(c.register))
	mux.Handle("GET /transaction/{transactionId}", wrap(c.getByTransactionID))
	mux.Handle("PATCH /transaction/{transactionId}", wrap(c.amend))
	mux.Handle("DELETE /transaction/{transactionId}", wrap(c.deleteByTransactionID))
	mux.Handle("GET /transactions/{accountId}", wrap(c.getByAccountID))
}

func (c *TransactionController) register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.RegisterTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logError(r, err, nil)
		response := commons.ErrorResponse[models.TransactionResponse]("invalid request body", err.Error())
		writeJSON(w, http.StatusBadRequest, response)
		logResponse(r, http.StatusBadRequest, response, start)
		return
	}
	logRequest(r, req)

	response, err := c.service.Register(r.Context(), req)
	if err != nil {
		status := statusForMessage(response.Message)
		logError(r, err, nil)
		writeJSON(w, status, response)
		logResponse(r, status, response, start)
		return
	}

	writeJSON(w, http.StatusOK, response)
	logResponse(r, http.StatusOK, response, start)
}

func (c *TransactionController) getByTransactionID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	response, err := c.service.GetByTransactionID(r.Context(), r.PathValue("transactionId"))
	if err != nil {
		status := statusForMessage(response.Message)
		writeJSON(w, status, response)
		logResponse(r, status, response, start)
		return
	}

	writeJSON(w, http.StatusOK, response)
	logResponse(r, http.StatusOK, response, start)
}

func (c *TransactionController) getByAccountID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	response, err := c.service.GetByAccountID(r.Context(), r.PathValue("accountId"))
	if err != nil {
		status := statusForMessage(response.Message)
		writeJSON(w, status, response)
		logResponse(r, status, response, start)
		return
	}

	writeJSON(w, http.StatusOK, response)
	logResponse(r, http.StatusOK, response, start)
}

func (c *TransactionController) amend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.AmendTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logError(r, err, nil)
		response := commons.ErrorResponse[models.TransactionResponse]("invalid request body", err.Error())
		writeJSON(w, http.StatusBadRequest, response)
		logResponse(r, http.StatusBadRequest, response, start)
		return
	}
	logRequest(r, req)

	response, err := c.service.AmendAmount(r.Context(), r.PathValue("transactionId"), req)
	if err != nil {
		status := statusForMessage(response.Message)
		logError(r, err, nil)
		writeJSON(w, status, response)
		logResponse(r, status, response, start)
		return
	}

	writeJSON(w, http.StatusOK, response)
	logResponse(r, http.StatusOK, response, start)
}

func (c *TransactionController) deleteByTransactionID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logRequest(r, nil)

	response, err := c.service.DeleteByTransactionID(r.Context(), r.PathValue("transactionId"))
	if err != nil {
		status := statusForMessage(response.Message)
		logError(r, err, nil)
		writeJSON(w, status, response)
		logResponse(r, status, response, start)
		return
	}

	writeJSON(w, http.StatusOK, response)
	logResponse(r, http.StatusOK, response, start)
}

func statusForMessage(message string) int {
	switch message {
	case "validation failed", "invalid request body":
		return http.StatusBadRequest
	case "Account not found", "Transaction not found":
		return http.StatusNotFound
	case "Insufficient funds":
		return http.StatusUnprocessableEntity
	case "Account is not open", "Transaction already dispatched", "Transaction is still in flight":
		return http.StatusConflict
	case "dispatch failed":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
