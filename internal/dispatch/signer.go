package dispatch

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/net/http/httpguts"

	"github.com/web3cache/web3cache/internal/model"
)

// Timestamp layout used both as a header value and inside the JWT claims:
// RFC 3339 with nanoseconds and a numeric zone offset.
const webhookTimestampLayout = "2006-01-02T15:04:05.999999999-07:00"

// BuildWebhookHeaders produces the delivery headers for one webhook POST,
// including an HS256 JWT signed with the subscription's API key. Receivers
// verify the token to authenticate the sender; the remaining headers
// identify the payload format and schema version.
//
// The claim name "subcription_id" (sic) is a wire contract; consumers
// already verify against the misspelled key.
func BuildWebhookHeaders(subID string, sub *model.Subscription, now time.Time) (http.Header, error) {
	timestamp := now.Format(webhookTimestampLayout)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"contract_id":    sub.ContractID,
		"timestamp":      timestamp,
		"subcription_id": subID,
	})
	signed, err := token.SignedString([]byte(sub.APIKey))
	if err != nil {
		return nil, fmt.Errorf("sign webhook token for %s: %w", subID, err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("x-msl-webhook-id", subID)
	headers.Set("x-msl-webhook-type", "web3.standard.events.v1")
	headers.Set("x-msl-webhook-format", "JSON")
	headers.Set("x-msl-webhook-signature-type", "jwt.light.v1")
	headers.Set("x-msl-webhook-nonce", "-1")
	headers.Set("x-msl-webhook-timestamp", timestamp)
	headers.Set("x-msl-webhook-jwt-signature", signed)

	for name, values := range headers {
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return nil, fmt.Errorf("invalid value for header %s", name)
			}
		}
	}
	return headers, nil
}
