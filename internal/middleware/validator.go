package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Input validation and sanitization utilities

// ValidateUUID checks that value is a canonical UUID; field names the parameter in the error.
func ValidateUUID(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, err := uuid.Parse(value); err != nil || len(value) != 36 {
		return fmt.Errorf("invalid %s format (expected UUID)", field)
	}
	return nil
}

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,128}$`)

// ValidateSessionID: session id dipilih client, jadi cukup dibatasi charset dan panjangnya
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if !sessionIDPattern.MatchString(sessionID) {
		return fmt.Errorf("invalid session_id format (alphanumeric, dash, underscore, dot, colon only, max 128 chars)")
	}
	return nil
}

// ParsePaging reads skip and limit query values; empty means default.
func ParsePaging(skipRaw, limitRaw string) (skip, limit int, err error) {
	if skipRaw != "" {
		skip, err = strconv.Atoi(skipRaw)
		if err != nil || skip < 0 {
			return 0, 0, fmt.Errorf("skip must be a non-negative integer")
		}
	}
	if limitRaw != "" {
		limit, err = strconv.Atoi(limitRaw)
		if err != nil || limit < 1 || limit > 500 {
			return 0, 0, fmt.Errorf("limit must be between 1 and 500")
		}
	}
	return skip, limit, nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
