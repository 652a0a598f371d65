package response

import (
	"encoding/json"
	"net/http"
)

// Envelope is the JSON body of every API response
type Envelope struct {
	Success  bool        `json:"success"`
	Result   interface{} `json:"result"`
	Messages []string    `json:"messages"`
}

// WriteResponse will reply to the request with http 200 and the given result wrapped in an Envelope
func WriteResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Envelope{
		Success:  true,
		Result:   result,
		Messages: []string{},
	})
}

// WriteError will reply to the request with the Error's status code and the Error wrapped in an Envelope
func WriteError(w http.ResponseWriter, r *http.Request, e *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	messages := append([]string{e.Message}, e.Messages...)
	json.NewEncoder(w).Encode(Envelope{
		Success:  false,
		Result:   e.Result,
		Messages: messages,
	})
}
