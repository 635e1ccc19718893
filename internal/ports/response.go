package ports

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, cause string) {
	data, err := json.Marshal(errorResponse{Success: false, Cause: cause})
	if err != nil {
		data = []byte(`{"success":false,"cause":"internal server error"}`)
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

// writeJSONResponse writes response with status 200. Marshalling errors are returned before anything is written.
func writeJSONResponse(w http.ResponseWriter, response any) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
	return nil
}
