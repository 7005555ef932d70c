package mapdatatests

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mapdata/gateway-contract-tests/framework"
	"github.com/mapdata/gateway-contract-tests/gate"
	"github.com/mapdata/gateway-contract-tests/normalize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

var (
	unavailabilityTimeout      = time.Second * 10
	unavailabilityPollInterval = time.Millisecond * 500
)

func DoRecoveryTests(t *T) {
	t.Run("responds correctly after recovering from a crash", func(t *T) {
		t.Require(gate.Requirements{
			AnyOf: [][]gate.Setting{{t.Setting("CRASH_ENDPOINT"), t.Setting("SERVICE_CONTROL_CMD")}},
		})
		cfg := t.Config()
		endpoint := cfg.MapDataEndpoint
		statusEndpoint := cfg.HealthEndpoint.OrElse(endpoint)

		t.crashService()
		t.awaitUnavailable()
		if cmd := cfg.ServiceControlCmd; cmd.IsDefined() {
			if err := t.env.commands.Run(t.Context(), cmd.StringValue(), t.context.DebugLogger()); err != nil {
				t.Debug("Restart command failed, waiting for recovery anyway: %s", err)
			}
		}

		err := framework.Poll(t.Context(), cfg.RecoveryTimeout, cfg.RecoveryPollInterval,
			func(ctx context.Context) (bool, error) {
				resp, err := t.Client().Get(ctx, statusEndpoint)
				if err != nil {
					return false, err
				}
				if resp.StatusCode != http.StatusOK {
					return false, fmt.Errorf("%s returned %s", statusEndpoint, resp)
				}
				return true, nil
			})
		require.NoError(t, err, "service did not recover")

		resp := t.Get(endpoint)
		t.RequireStatus(resp, http.StatusOK)
		body := normalize.Parse(resp.Body)
		switch body.Type() {
		case ldvalue.ArrayType:
			assert.Greater(t, body.Count(), 0, "expected response array to contain at least one item")
		case ldvalue.ObjectType:
			assert.Greater(t, len(body.Keys()), 0, "expected response object to contain properties")
		default:
			assert.NotEmpty(t, body.StringValue(), "expected a non-empty response body")
		}

		second := t.Get(endpoint)
		assert.Equal(t, http.StatusOK, second.StatusCode,
			"expected a subsequent request to succeed, indicating stability; got %s", second)
	})
}

// crashService takes the service down through the crash endpoint if there is one, or else by
// running the service control command. The crash endpoint answering with an unexpected status
// fails the test; a dropped connection or a failing command is only logged.
func (t *T) crashService() {
	cfg := t.Config()
	switch {
	case cfg.CrashEndpoint.IsDefined():
		t.requireControlCall(cfg.CrashEndpoint.StringValue(), "crash request")
	case cfg.ServiceControlCmd.IsDefined():
		if err := t.env.commands.Run(t.Context(), cfg.ServiceControlCmd.StringValue(), t.context.DebugLogger()); err != nil {
			t.Debug("Service control command failed: %s", err)
		}
	}
}

// awaitUnavailable waits until the service stops answering normally. With a health endpoint that
// means anything other than 200; otherwise it means no response or a 5xx status. Not observing an
// outage is not a failure, since the service may have restarted too quickly to see it.
func (t *T) awaitUnavailable() {
	cfg := t.Config()
	err := framework.Poll(t.Context(), unavailabilityTimeout, unavailabilityPollInterval,
		func(ctx context.Context) (bool, error) {
			if cfg.HealthEndpoint.IsDefined() {
				resp, err := t.Client().Get(ctx, cfg.HealthEndpoint.StringValue())
				return err != nil || resp.StatusCode != http.StatusOK, nil
			}
			resp, err := t.Client().Get(ctx, cfg.MapDataEndpoint)
			return err != nil || resp.StatusCode >= 500, nil
		})
	if err != nil {
		t.Debug("Did not observe the service becoming unavailable: %s", err)
	}
}
