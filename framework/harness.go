package framework

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const targetQueryInterval = time.Millisecond * 100

// TestHarness holds the state shared by a whole test run: where the backend under test lives,
// and the HTTP client used to reach it.
type TestHarness struct {
	targetBaseURL string
	httpClient    *http.Client
	logger        Logger
}

// NewTestHarness creates a TestHarness instance, and verifies that the backend under test is
// accepting connections by querying its base URL until it gets any HTTP response. A response
// with an error status still counts as reachable, since the base URL itself may not be a
// resource the backend serves.
func NewTestHarness(
	targetBaseURL string,
	httpClient *http.Client,
	statusQueryTimeout time.Duration,
	debugLogger Logger,
	startupOutput io.Writer,
) (*TestHarness, error) {
	if debugLogger == nil {
		debugLogger = NullLogger()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	h := &TestHarness{
		targetBaseURL: targetBaseURL,
		httpClient:    httpClient,
		logger:        debugLogger,
	}
	if err := h.awaitTarget(context.Background(), statusQueryTimeout, startupOutput); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *TestHarness) TargetBaseURL() string {
	return h.targetBaseURL
}

func (h *TestHarness) HTTPClient() *http.Client {
	return h.httpClient
}

func (h *TestHarness) Logger() Logger {
	return h.logger
}

func (h *TestHarness) awaitTarget(ctx context.Context, timeout time.Duration, output io.Writer) error {
	fmt.Fprintf(output, "Connecting to backend at %s", h.targetBaseURL)
	err := Poll(ctx, timeout, targetQueryInterval, func(ctx context.Context) (bool, error) {
		fmt.Fprintf(output, ".")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.targetBaseURL, nil)
		if err != nil {
			return false, err
		}
		resp, err := h.httpClient.Do(req)
		if err != nil {
			return false, err
		}
		_ = resp.Body.Close()
		h.logger.Printf("Backend responded to status query with HTTP %d", resp.StatusCode)
		return true, nil
	})
	fmt.Fprintln(output)
	if err != nil {
		return fmt.Errorf("backend at %s is not reachable: %w", h.targetBaseURL, err)
	}
	return nil
}
