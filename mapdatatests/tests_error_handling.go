package mapdatatests

import (
	"fmt"
	"time"

	"github.com/mapdata/gateway-contract-tests/gate"
	"github.com/mapdata/gateway-contract-tests/normalize"

	"github.com/stretchr/testify/assert"
)

// errorSettleDelay is how long to give the backend to apply a forced error.
var errorSettleDelay = time.Millisecond * 500

func DoErrorHandlingTests(t *T) {
	t.Run("returns an error and no entries when retrieval fails", func(t *T) {
		t.Require(gate.Requirements{Settings: []gate.Setting{t.Setting("FORCE_ERROR_ENDPOINT")}})
		cfg := t.Config()
		endpoint := cfg.MapDataEndpoint

		if _, err := t.Client().Get(t.Context(), endpoint); err != nil {
			t.context.SkipWithReason(fmt.Sprintf("service at %s is not reachable: %s", t.Client().URL(endpoint), err))
		}

		if clearEndpoint := cfg.ClearErrorEndpoint; clearEndpoint.IsDefined() {
			t.Defer(func() {
				if err := t.postControl(clearEndpoint.StringValue()); err != nil {
					t.Debug("Clearing the forced error failed: %s", err)
				}
			})
		}
		t.requireControlCall(cfg.ForceErrorEndpoint.StringValue(), "force error request")
		time.Sleep(errorSettleDelay)

		resp := t.Get(endpoint)
		assert.GreaterOrEqual(t, resp.StatusCode, 400, "expected an error status; got %s", resp)
		assert.Less(t, resp.StatusCode, 600, "expected an error status; got %s", resp)
		assert.True(t, normalize.HasErrorIndication(resp.Body),
			"response should contain an error message or fields indicating failure; body: %s", resp.Body)
		assert.True(t, normalize.EntriesEmpty(resp.Body),
			"no map data entries should be returned when an error occurs; body: %s", resp.Body)
	})
}
