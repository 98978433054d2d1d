package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"wagate/internal/domain"
)

type sendRequest struct {
	Phone    string `json:"phone"`
	Text     string `json:"text"`
	File     string `json:"file"`
	Link     string `json:"link"`
	Mimetype string `json:"mimetype"`
	Filename string `json:"filename"`
}

type sendResponse struct {
	Contact string           `json:"contact"`
	Text    string           `json:"text"`
	ID      domain.MessageID `json:"id"`
}

type authStatusResponse struct {
	Authenticated bool                    `json:"authenticated"`
	Status        domain.ConnectionStatus `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "Application running", "status": http.StatusOK})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSend(w, r)
	if !ok {
		return
	}
	receipt, err := s.session.SendText(r.Context(), req.Phone, req.Text)
	s.respondSend(w, receipt, req.Text, err)
}

func (s *Server) sendImage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSend(w, r)
	if !ok {
		return
	}
	receipt, err := s.session.SendImage(r.Context(), req.Phone, req.File, req.Text)
	s.respondSend(w, receipt, req.Text, err)
}

func (s *Server) sendFile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSend(w, r)
	if !ok {
		return
	}
	receipt, err := s.session.SendDocument(r.Context(), req.Phone, req.File, req.Text, req.Mimetype, req.Filename)
	s.respondSend(w, receipt, req.Text, err)
}

func (s *Server) sendLink(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSend(w, r)
	if !ok {
		return
	}
	receipt, err := s.session.SendLink(r.Context(), req.Phone, req.Link, req.Text)
	s.respondSend(w, receipt, req.Text, err)
}

func (s *Server) respondSend(w http.ResponseWriter, receipt domain.Receipt, text string, err error) {
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{Contact: receipt.Destination, Text: text, ID: receipt.ID})
}

func (s *Server) authStatus(w http.ResponseWriter, r *http.Request) {
	status := s.session.Status()
	writeJSON(w, http.StatusOK, authStatusResponse{
		Authenticated: status == domain.StatusAuthenticated,
		Status:        status,
	})
}

func (s *Server) qrCode(w http.ResponseWriter, r *http.Request) {
	qr, ok := s.session.CurrentQR()
	if !ok {
		msg := "QR code not available."
		if s.session.Authenticated() {
			msg = "QR code not available. WhatsApp is already authenticated."
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qrCode": qr.Code})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(r.Context()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func decodeSend(w http.ResponseWriter, r *http.Request) (sendRequest, bool) {
	var req sendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return sendRequest{}, false
	}
	return req, true
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case domain.IsMissingParameter(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusConflict
	case domain.IsSendError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("status", status).Error("Request failed")
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
