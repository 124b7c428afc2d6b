package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Success           bool      `json:"success"`
	Error             string    `json:"error"`
	Details           string    `json:"details,omitempty"`
	ReconnectRequired bool      `json:"reconnectRequired,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

func sendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) sendData(w http.ResponseWriter, data any) {
	sendJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: h.now().UTC(),
	})
}

func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message, details string) {
	sendJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		Details:   details,
		Timestamp: h.now().UTC(),
	})
}

func (h *Handler) sendReconnect(w http.ResponseWriter, statusCode int, message, details string) {
	sendJSON(w, statusCode, ErrorResponse{
		Success:           false,
		Error:             message,
		Details:           details,
		ReconnectRequired: true,
		Timestamp:         h.now().UTC(),
	})
}
