package httpserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/bryanwahyu/signaware/internal/logger"
	"github.com/bryanwahyu/signaware/internal/middleware"
)

type maskTextRequest struct {
	Text string `json:"text"`
	// UserID hanya untuk log, teks bebas tidak disimpan
	UserID string `json:"userId"`
}

func (r *Router) handleMaskText(w http.ResponseWriter, req *http.Request) error {
	var body maskTextRequest
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	res, err := r.masking.MaskText(req.Context(), body.Text)
	if err != nil {
		return err
	}
	middleware.IncrementMasking()
	logger.FromContext(req.Context(), r.log).Info("text masked",
		zap.String("user_id", body.UserID),
		zap.Int("original_length", res.OriginalLength),
		zap.Int("masked_length", res.MaskedLength),
	)
	return writeJSON(w, http.StatusOK, res)
}

func (r *Router) handleMaskDocument(w http.ResponseWriter, req *http.Request) error {
	id, userID, err := documentParams(req)
	if err != nil {
		return err
	}
	res, err := r.masking.MaskDocument(req.Context(), id, userID)
	if err != nil {
		return err
	}
	middleware.IncrementMasking()
	return writeJSON(w, http.StatusOK, res)
}

func (r *Router) handleMaskedContent(w http.ResponseWriter, req *http.Request) error {
	id, userID, err := documentParams(req)
	if err != nil {
		return err
	}
	res, err := r.masking.MaskedContent(req.Context(), id, userID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}
