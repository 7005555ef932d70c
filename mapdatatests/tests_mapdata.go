package mapdatatests

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/mapdata/gateway-contract-tests/apiclient"
	"github.com/mapdata/gateway-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func DoMapDataTests(t *T) {
	endpoint := strings.TrimRight(t.Config().MapDataEndpoint, "/")

	t.Run("list has required fields", func(t *T) {
		list := t.requireMapDataList(t.Get(endpoint))
		require.Greater(t, list.Count(), 0, "map data list should contain at least one entry")

		for i := 0; i < list.Count(); i++ {
			entry := list.GetByIndex(i)
			for _, problem := range servicedef.CheckMapDataShape(entry) {
				t.Errorf("entry %d: %s", i, problem)
			}
		}
	})

	t.Run("filter by post code", func(t *T) {
		postCode := t.Config().TestPostCode.StringValue()
		if postCode == "" {
			list := t.requireMapDataList(t.Get(endpoint))
			require.Greater(t, list.Count(), 0,
				"TEST_POSTCODE is not set and the unfiltered list is empty, so there is no post code to filter by")
			postCode = list.GetByIndex(0).GetByKey("postCode").StringValue()
			require.NotEmpty(t, postCode, "first map data entry has no postCode")
			t.Debug("Using post code %q from the first listed entry", postCode)
		}

		filtered := t.requireMapDataList(t.Get(endpoint + "/" + url.PathEscape(postCode)))
		require.Greater(t, filtered.Count(), 0, "no entries returned for post code %q", postCode)
		for i := 0; i < filtered.Count(); i++ {
			assert.Equal(t, postCode, filtered.GetByIndex(i).GetByKey("postCode").StringValue(),
				"entry %d should match the requested post code", i)
		}
	})
}

func (t *T) requireMapDataList(resp apiclient.Response) ldvalue.Value {
	t.RequireStatus(resp, http.StatusOK)
	list := t.RequireJSON(resp)
	require.Equal(t, ldvalue.ArrayType, list.Type(), "response body should be a JSON array: %s", resp.Body)
	return list
}
