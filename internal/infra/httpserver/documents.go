package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	appdocs "github.com/bryanwahyu/signaware/internal/application/documents"
	"github.com/bryanwahyu/signaware/internal/domain/documents"
	"github.com/bryanwahyu/signaware/internal/middleware"
)

type createDocumentRequest struct {
	Title            string `json:"title"`
	Content          string `json:"content"`
	DocumentType     string `json:"document_type"`
	OriginalFileName string `json:"original_file_name"`
	MimeType         string `json:"mime_type"`
}

func (r *Router) handleCreateDocument(w http.ResponseWriter, req *http.Request) error {
	userID, err := queryUUID(req, "user_id")
	if err != nil {
		return err
	}
	var body createDocumentRequest
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	doc, err := r.docs.Create(req.Context(), appdocs.CreateCommand{
		UserID:           userID,
		Title:            middleware.SanitizeString(body.Title),
		Content:          body.Content,
		Type:             body.DocumentType,
		OriginalFileName: body.OriginalFileName,
		MimeType:         body.MimeType,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, doc)
}

func (r *Router) handleUploadDocument(w http.ResponseWriter, req *http.Request) error {
	userID, err := queryUUID(req, "user_id")
	if err != nil {
		return err
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	if err := req.ParseMultipartForm(r.maxUpload); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return badRequest("invalid multipart form: %v", err)
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return badRequest("file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	doc, err := r.docs.Upload(req.Context(), appdocs.UploadCommand{
		UserID:      userID,
		Title:       middleware.SanitizeString(req.FormValue("title")),
		Type:        req.FormValue("type"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, doc)
}

func (r *Router) handleListDocuments(w http.ResponseWriter, req *http.Request) error {
	userID, err := queryUUID(req, "user_id")
	if err != nil {
		return err
	}
	q := req.URL.Query()
	skip, limit, err := middleware.ParsePaging(q.Get("skip"), q.Get("limit"))
	if err != nil {
		return badRequest("%v", err)
	}
	f := documents.ListFilter{UserID: userID, Skip: skip, Limit: limit}
	if v := q.Get("document_type"); v != "" {
		if f.Type, err = documents.ParseType(v); err != nil {
			return err
		}
	}
	if v := q.Get("status"); v != "" {
		if f.Status, err = documents.ParseStatus(v); err != nil {
			return err
		}
	}
	docs, err := r.docs.List(req.Context(), f)
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []*documents.Document{}
	}
	return writeJSON(w, http.StatusOK, docs)
}

func (r *Router) handleGetDocument(w http.ResponseWriter, req *http.Request) error {
	id, userID, err := documentParams(req)
	if err != nil {
		return err
	}
	doc, err := r.docs.Get(req.Context(), id, userID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, doc)
}

func (r *Router) handleDeleteDocument(w http.ResponseWriter, req *http.Request) error {
	id, userID, err := documentParams(req)
	if err != nil {
		return err
	}
	if err := r.docs.Delete(req.Context(), id, userID); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{
		"message":     "Document deleted successfully",
		"document_id": id,
	})
}

type analyzeRequest struct {
	UserID string `json:"user_id"`
}

// handleAnalyze returns 200 for failed runs too; the body carries status=failed and the reason.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	id, err := pathUUID(req, "id")
	if err != nil {
		return err
	}
	var body analyzeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("invalid JSON body: %v", err)
	}
	// body kosong: fallback ke query param
	if body.UserID == "" {
		body.UserID = req.URL.Query().Get("user_id")
	}
	if err := middleware.ValidateUUID("user_id", body.UserID); err != nil {
		return badRequest("%v", err)
	}
	force := false
	if v := req.URL.Query().Get("force"); v != "" {
		if force, err = strconv.ParseBool(v); err != nil {
			return badRequest("force must be a boolean")
		}
	}

	out, err := r.docs.RequestAnalysis(req.Context(), id, body.UserID, force)
	if err != nil {
		return err
	}
	if out.Ran {
		middleware.RecordAnalysis(string(out.Status))
	}
	return writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleGetAnalysis(w http.ResponseWriter, req *http.Request) error {
	id, userID, err := documentParams(req)
	if err != nil {
		return err
	}
	out, err := r.docs.GetAnalysis(req.Context(), id, userID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, out)
}

func documentParams(req *http.Request) (id, userID string, err error) {
	if id, err = pathUUID(req, "id"); err != nil {
		return "", "", err
	}
	if userID, err = queryUUID(req, "user_id"); err != nil {
		return "", "", err
	}
	return id, userID, nil
}
