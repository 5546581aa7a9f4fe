package server

import (
	"encoding/json"
	"net/http"
)

// Response messages returned to clients.
const (
	msgUnauthorized     = "Unauthorized: Invalid API Key"
	msgNotFound         = "Not Found"
	msgFileNotFound     = "File not found"
	msgIDRequired       = "File ID is required"
	msgCodeRequired     = "Passphrase code is required"
	msgUploadFailed     = "File upload failed"
	msgProcessingFailed = "File processing error"
	msgListFailed       = "Failed to retrieve files"
	msgInternal         = "Internal Server Error"
	msgUploaded         = "Files uploaded successfully"
	msgDeleted          = "File deleted successfully"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {message, error?}. err may be nil.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := errorBody{Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	writeJSON(w, status, body)
}
