package authsync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ZebulonRouseFrantzich/cdx/internal/credential"
)

const (
	commandRetrieve = "retrieve"
	commandStore    = "store"
)

type retrieveRequest struct {
	Command        string `json:"command"`
	LastRefresh    string `json:"last_refresh"`
	Digest         string `json:"digest"`
	ClientVersion  string `json:"client_version"`
	WrapperVersion string `json:"wrapper_version,omitempty"`
}

type storeRequest struct {
	Command        string              `json:"command"`
	Auth           credential.Document `json:"auth"`
	ClientVersion  string              `json:"client_version"`
	Digest         string              `json:"digest,omitempty"`
	WrapperVersion string              `json:"wrapper_version,omitempty"`
}

// responseData is the "data" member of a service response.
type responseData struct {
	Status               string          `json:"status"`
	Auth                 json.RawMessage `json:"auth"`
	CanonicalLastRefresh string          `json:"canonical_last_refresh"`
	LastRefresh          string          `json:"last_refresh"`
	CanonicalDigest      string          `json:"canonical_digest"`
	Digest               string          `json:"digest"`
	Versions             *RemoteVersions `json:"versions"`
}

// refresh returns the authoritative refresh marker, if any.
func (d *responseData) refresh() string {
	if s := strings.TrimSpace(d.CanonicalLastRefresh); s != "" {
		return s
	}
	return strings.TrimSpace(d.LastRefresh)
}

// document returns the auth payload, or nil when absent or not an object.
func (d *responseData) document() credential.Document {
	raw := bytes.TrimSpace(d.Auth)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	doc, err := credential.Parse(raw)
	if err != nil {
		return nil
	}
	return doc
}

func decodeResponse(body []byte) (*responseData, error) {
	var env struct {
		Data *responseData `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Data != nil {
		return env.Data, nil
	}
	var flat responseData
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &flat, nil
}

// errorBody is the service's error shape.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Details struct {
		ExpectedIP string `json:"expected_ip"`
		ReceivedIP string `json:"received_ip"`
	} `json:"details"`
}

// failure is the classified form of a non-2xx response.
type failure struct {
	status      Status
	reason      string
	deleteLocal bool
}

// classify maps an HTTP error response to an outcome and whether the local
// credential file must be removed.
func classify(code int, body []byte) failure {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}
	text := strings.ToLower(msg + " " + string(body))

	switch code {
	case http.StatusUnauthorized:
		if strings.Contains(text, "invalid api key") {
			return failure{StatusDenied, "invalid API key", true}
		}
		if strings.Contains(text, "api key missing") {
			return failure{StatusDenied, "API key missing", false}
		}
		return failure{StatusDenied, describe(code, msg), false}

	case http.StatusForbidden:
		if strings.Contains(text, "host is disabled") {
			return failure{StatusDisabled, "host is disabled", true}
		}
		if strings.Contains(text, "not allowed from this ip") || eb.Details.ExpectedIP != "" || eb.Details.ReceivedIP != "" {
			return failure{StatusDenied, fmt.Sprintf("API key not allowed from this IP (expected %s, received %s)",
				orUnknown(eb.Details.ExpectedIP), orUnknown(eb.Details.ReceivedIP)), false}
		}

	case http.StatusServiceUnavailable:
		if strings.Contains(text, "disabled") {
			return failure{StatusDisabled, "service disabled", false}
		}
	}

	return failure{StatusTransportFailed, describe(code, msg), true}
}

func describe(code int, msg string) string {
	if msg == "" {
		return fmt.Sprintf("http %d", code)
	}
	return fmt.Sprintf("http %d: %s", code, msg)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
