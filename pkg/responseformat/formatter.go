// Package responseformat encodes HTTP responses as JSON, or as MessagePack when the
// request asks for it with format=msgpack.
package responseformat

import (
	"encoding/json"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/x-msgpack"
)

// Formatter handles encoding and writing responses in JSON or MessagePack format
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error  string `json:"error"`
	Detail any    `json:"detail,omitempty"`
}

// WriteResponse writes data with the given status in the format the request selects.
// JSON is the default.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if WantsMsgPack(req) {
		return f.writeMsgPack(w, status, data)
	}
	return f.writeJSON(w, status, data)
}

// WriteError writes an ErrorBody.
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, msg string, detail any) error {
	return f.WriteResponse(w, req, status, ErrorBody{Error: msg, Detail: detail})
}

// WantsMsgPack reports whether the request asked for MessagePack.
func WantsMsgPack(req *http.Request) bool {
	return req.URL.Query().Get("format") == "msgpack" || req.Header.Get("Accept") == ContentTypeMsgPack
}

func (f *Formatter) writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func (f *Formatter) writeMsgPack(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", ContentTypeMsgPack)
	w.WriteHeader(status)
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}
