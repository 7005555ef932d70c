package mapdatatests

import (
	"net/http"
	"strings"

	"github.com/mapdata/gateway-contract-tests/gate"
	"github.com/mapdata/gateway-contract-tests/normalize"
	"github.com/mapdata/gateway-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultExistingGUIDForGet  = "123e4567-e89b-12d3-a456-426614174000"
	defaultExistingGUIDForPost = "3fa85f64-5717-4562-b3fc-2c963f66afa6"
	nonExistentGUID            = "00000000-0000-0000-0000-000000000000"
	malformedGUIDForGet        = "invalid-guid-format"
	malformedGUIDForPost       = "invalid-guid"
)

func (t *T) validateGUIDPath(guid string) string {
	return strings.TrimRight(t.Config().ValidateGUIDEndpoint, "/") + "/" + guid
}

func DoValidateGUIDGetTests(t *T) {
	t.Run("returns true for existing GUID", func(t *T) {
		t.Require(gate.Requirements{NeedsSeed: true})
		guid := t.Config().GUIDOr(defaultExistingGUIDForGet)
		t.RequireSeeded(guid)

		resp := t.Get(t.validateGUIDPath(guid))
		t.RequireStatus(resp, http.StatusOK)
		t.RequireOutcome(resp, normalize.True)
	})

	t.Run("returns false for non-existent GUID", func(t *T) {
		resp := t.Get(t.validateGUIDPath(nonExistentGUID))
		t.RequireStatus(resp, http.StatusOK)
		t.RequireOutcome(resp, normalize.False)
	})

	t.Run("returns false for empty GUID", func(t *T) {
		resp := t.Get(t.validateGUIDPath(""))
		t.RequireStatus(resp, http.StatusOK)
		t.RequireOutcome(resp, normalize.False)
	})

	t.Run("rejects or returns false for invalid GUID format", func(t *T) {
		resp := t.Get(t.validateGUIDPath(malformedGUIDForGet))
		switch resp.StatusCode {
		case http.StatusOK:
			t.RequireOutcome(resp, normalize.False)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			assert.True(t, normalize.MentionsAll(resp.Body, "invalid", "guid"),
				"error response should say the GUID is invalid: %s", resp.Body)
		default:
			require.Fail(t, "unexpected status for an invalid GUID",
				"expected 200, 400 or 422; got %s", resp)
		}
	})
}

func DoValidateGUIDPostTests(t *T) {
	endpoint := t.Config().ValidateGUIDEndpoint

	t.Run("returns true for existing GUID", func(t *T) {
		t.Require(gate.Requirements{NeedsSeed: true})
		guid := t.Config().GUIDOr(defaultExistingGUIDForPost)
		t.RequireSeeded(guid)

		resp := t.Post(endpoint, servicedef.ValidateGUIDParams{ID: guid})
		t.RequireStatus(resp, http.StatusOK)
		t.RequireOutcome(resp, normalize.True)
	})

	t.Run("returns false for non-existent GUID", func(t *T) {
		resp := t.Post(endpoint, servicedef.ValidateGUIDParams{ID: nonExistentGUID})
		t.RequireStatus(resp, http.StatusOK)
		t.RequireOutcome(resp, normalize.False)
	})

	t.Run("returns 400 for invalid GUID format", func(t *T) {
		resp := t.Post(endpoint, servicedef.ValidateGUIDParams{ID: malformedGUIDForPost})
		t.RequireStatus(resp, http.StatusBadRequest)
		assert.True(t, normalize.ErrorFieldsMentionAll(resp.Body, "invalid", "guid"),
			"error response should say the GUID is invalid: %s", resp.Body)
	})
}
