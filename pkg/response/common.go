package response

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/beanbocchi/nimbus/internal/model"
)

// CommonResponse is the error envelope the service writes on failure.
type CommonResponse struct {
	Data  any          `json:"data,omitempty"`
	Error *model.Error `json:"error"`
}

// Success is the body of administrative calls that carry no payload.
type Success struct {
	Success bool `json:"success"`
}

// JSON writes v as the complete response body.
func JSON(w http.ResponseWriter, status int, v any) error {
	body, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// FromError writes err inside the error envelope. Errors that are not
// model.Error are reported under the "internal" code.
func FromError(w http.ResponseWriter, status int, err error) error {
	var modelErr model.Error
	if !errors.As(err, &modelErr) {
		modelErr = model.NewError("internal", err.Error())
	}
	return JSON(w, status, CommonResponse{Error: &modelErr})
}

// FromMessage writes a plain success envelope.
func FromMessage(w http.ResponseWriter, status int) error {
	return JSON(w, status, Success{Success: true})
}

// ErrorMessage extracts the message from an error envelope body. It returns
// the raw body when it is not an envelope.
func ErrorMessage(body []byte) string {
	var resp CommonResponse
	if err := sonic.Unmarshal(body, &resp); err == nil && resp.Error != nil {
		return resp.Error.Error()
	}
	return string(body)
}
