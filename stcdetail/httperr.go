package stcdetail

import (
	"fmt"
	"io"
	"net/http"
)

// Cap on how much of an error body is retained.
const maxErrorBody = 4096

// A non-2xx HTTP response.
type HTTPerror struct {
	Resp *http.Response
	Body []byte
}

func NewHTTPerror(resp *http.Response) *HTTPerror {
	var body []byte
	if resp.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	}
	return &HTTPerror{
		Resp: resp,
		Body: body,
	}
}

func (e *HTTPerror) Error() string {
	if len(e.Body) == 0 {
		return e.Resp.Status
	}
	return fmt.Sprintf("%s: %s", e.Resp.Status, e.Body)
}

// Returns true for 503 and 504, false otherwise.
func (e *HTTPerror) Temporary() bool {
	switch e.Resp.StatusCode {
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
