package report

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gopkg.in/yaml.v3"

	"github.com/flaurencin/partrecipe/utility"
)

// WebhookClient is an otelhttp-wrapped client, grounded on cmd/setup/setup.go's
// otelhttp.NewTransport construction.
var WebhookClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: time.Minute}

// NotifyWebhook POSTs full as YAML to url, so a caller can be notified of a
// completed build without polling.
func NotifyWebhook(ctx context.Context, url string, full Full) error {
	payload, err := yaml.Marshal(full)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/yaml")

	resp, err := WebhookClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer utility.WrappedClose(resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", url, resp.StatusCode)
	}
	return nil
}
