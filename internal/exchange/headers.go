// Package exchange builds the authentication headers of exchange order requests.
package exchange

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/tradeguard/internal/crypto"
	"github.com/iudanet/tradeguard/internal/models"
)

// Заголовки в соглашении подписи биржи
const (
	HeaderAPIKey    = "X-MBX-APIKEY"
	HeaderSignature = "X-MBX-SIGNATURE"
	HeaderTimestamp = "X-MBX-TIMESTAMP"
	HeaderType      = "Content-Type"
)

const (
	DefaultOrderMethod = http.MethodPost
	DefaultOrderPath   = "/api/v1/order"
)

// ErrMissingCredentials - у пользователя нет ключа или секрета биржи
var ErrMissingCredentials = errors.New("exchange credentials are not configured")

// Endpoint is the signed request target.
type Endpoint struct {
	Method string
	Path   string
}

// OrderEndpoint returns the default order endpoint.
func OrderEndpoint() Endpoint {
	return Endpoint{Method: DefaultOrderMethod, Path: DefaultOrderPath}
}

// SigningString returns timestamp + METHOD + path, followed by "?" and the
// encoded query when query is not empty. Query keys are sorted.
func SigningString(timestampMs int64, method, path string, query url.Values) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(timestampMs, 10))
	b.WriteString(strings.ToUpper(method))
	b.WriteString(path)
	if encoded := query.Encode(); encoded != "" {
		b.WriteByte('?')
		b.WriteString(encoded)
	}
	return b.String()
}

// OrderQuery renders order fields and the millisecond timestamp as the signed
// query. The collaborator must send exactly these parameters with the headers.
func OrderQuery(fields map[string]any, timestampMs int64) url.Values {
	q := make(url.Values, len(fields)+1)
	for k, v := range fields {
		q.Set(k, fmt.Sprint(v))
	}
	q.Set("timestamp", strconv.FormatInt(timestampMs, 10))
	return q
}

// BuildHeaders signs the endpoint with the user's API secret at now.
// The secret is neither copied nor retained.
func BuildHeaders(creds *models.ExchangeCredentials, ep Endpoint, query url.Values, now time.Time) (map[string]string, error) {
	if creds == nil || creds.APIKey == "" || len(creds.APISecret) == 0 {
		return nil, ErrMissingCredentials
	}
	if ep.Method == "" {
		ep.Method = DefaultOrderMethod
	}
	if ep.Path == "" {
		ep.Path = DefaultOrderPath
	}

	ts := now.UnixMilli()
	payload := SigningString(ts, ep.Method, ep.Path, query)

	return map[string]string{
		HeaderAPIKey:    creds.APIKey,
		HeaderSignature: crypto.SignHMAC([]byte(payload), creds.APISecret),
		HeaderTimestamp: strconv.FormatInt(ts, 10),
		HeaderType:      "application/json",
	}, nil
}

// VerifyHeaders recomputes the signature of headers for the endpoint.
func VerifyHeaders(headers map[string]string, secret []byte, ep Endpoint, query url.Values) bool {
	ts, err := strconv.ParseInt(headers[HeaderTimestamp], 10, 64)
	if err != nil {
		return false
	}
	payload := SigningString(ts, ep.Method, ep.Path, query)
	return crypto.VerifyHMAC([]byte(payload), secret, headers[HeaderSignature])
}
