package usage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ZebulonRouseFrantzich/cdx/internal/httpclient"
	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
)

// Reporter posts usage reports to {base}/usage.
type Reporter struct {
	client  httpclient.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewReporter creates a reporter.
func NewReporter(client httpclient.Client, baseURL, apiKey string, logger *slog.Logger) *Reporter {
	return &Reporter{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logging.Category(logger, "usage"),
	}
}

// Send posts rep. Any 2xx counts as success.
func (r *Reporter) Send(ctx context.Context, rep *Report) error {
	if r.baseURL == "" || r.apiKey == "" {
		return fmt.Errorf("usage endpoint not configured")
	}
	resp, err := httpclient.PostJSON(ctx, r.client, r.baseURL+"/usage", http.Header{"X-API-Key": {r.apiKey}}, rep)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return nil
}

// ReportFile extracts usage from the capture log at path and sends it.
// Nothing is sent when the log has no usage line. Failures are logged and
// never returned.
func (r *Reporter) ReportFile(ctx context.Context, path string) {
	rep, ok, err := ExtractFile(path)
	switch {
	case err != nil:
		r.logger.Debug("no capture log", "err", err)
		return
	case !ok:
		r.logger.Debug("no usage line in session output")
		return
	}

	if r.baseURL == "" || r.apiKey == "" {
		r.logger.Warn("skipped | API key or base URL missing")
		return
	}
	if !rep.Parsed() {
		r.logger.Debug("usage line not parsed; sending raw line")
	}
	if err := r.Send(ctx, rep); err != nil {
		r.logger.Warn("failed", "err", err)
		return
	}
	r.logger.Info("sent | " + rep.Summary())
}
