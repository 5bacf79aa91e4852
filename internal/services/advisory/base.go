package advisory

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	xhttp "QuantLab/pkg/http"
)

// HTTPServiceBase centralizes the JSON-over-HTTP plumbing shared by
// outboard advisory services: client construction, request shaping and
// linear-backoff retries for transient failures.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
	retries int
}

func NewHTTPServiceBase(baseURL string, timeout time.Duration, retries int) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if retries < 1 {
		retries = 1
	}
	return &HTTPServiceBase{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		retries: retries,
	}
}

// PostJSON posts the payload to `path` under baseURL and decodes the
// JSON response into dest. Failed attempts back off attempt*50ms.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("advisory http client not initialized")
	}

	var err error
	for attempt := 1; attempt <= b.retries; attempt++ {
		err = b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     b.baseURL + path,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    payload,
		}, dest)
		if err == nil {
			return nil
		}
		if attempt == b.retries {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return xhttp.NewAppError("ERR_UPSTREAM", "advisory service unavailable", http.StatusBadGateway).
		WithParam("path", path).
		WithError(err)
}
