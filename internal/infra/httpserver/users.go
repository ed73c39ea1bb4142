package httpserver

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	appusers "github.com/bryanwahyu/signaware/internal/application/users"
	"github.com/bryanwahyu/signaware/internal/middleware"
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// pathUUID reads a chi URL param that must be a UUID.
func pathUUID(req *http.Request, name string) (string, error) {
	v := chi.URLParam(req, name)
	if err := middleware.ValidateUUID(name, v); err != nil {
		return "", badRequest("%v", err)
	}
	return v, nil
}

// queryUUID reads a required UUID query value.
func queryUUID(req *http.Request, name string) (string, error) {
	v := req.URL.Query().Get(name)
	if err := middleware.ValidateUUID(name, v); err != nil {
		return "", badRequest("%v", err)
	}
	return v, nil
}

type userRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	GoogleID  string `json:"google_id"`
	Avatar    string `json:"avatar"`
}

func (r *Router) handleCreateUser(w http.ResponseWriter, req *http.Request) error {
	var body userRequest
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	u, err := r.users.Create(req.Context(), appusers.CreateCommand{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: middleware.SanitizeString(body.FirstName),
		LastName:  middleware.SanitizeString(body.LastName),
		Role:      body.Role,
		GoogleID:  body.GoogleID,
		Avatar:    body.Avatar,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, u)
}

func (r *Router) handleGetUser(w http.ResponseWriter, req *http.Request) error {
	id, err := pathUUID(req, "id")
	if err != nil {
		return err
	}
	u, err := r.users.Get(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, u)
}

func (r *Router) handleGetUserByEmail(w http.ResponseWriter, req *http.Request) error {
	u, err := r.users.GetByEmail(req.Context(), chi.URLParam(req, "email"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, u)
}

// pointer fields: field yang tidak dikirim tidak diubah
type updateUserRequest struct {
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
	GoogleID  *string `json:"google_id"`
	Avatar    *string `json:"avatar"`
}

func (r *Router) handleUpdateUser(w http.ResponseWriter, req *http.Request) error {
	id, err := pathUUID(req, "id")
	if err != nil {
		return err
	}
	var body updateUserRequest
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	u, err := r.users.Update(req.Context(), id, appusers.UpdateCommand{
		Email:     body.Email,
		Password:  body.Password,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Role:      body.Role,
		GoogleID:  body.GoogleID,
		Avatar:    body.Avatar,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, u)
}

func (r *Router) handleDeleteUser(w http.ResponseWriter, req *http.Request) error {
	id, err := pathUUID(req, "id")
	if err != nil {
		return err
	}
	if err := r.users.Delete(req.Context(), id); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{
		"message": "User deleted successfully",
		"user_id": id,
	})
}
