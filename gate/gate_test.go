package gate

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/mapdata/gateway-contract-tests/apiclient"
	"github.com/mapdata/gateway-contract-tests/config"
	"github.com/mapdata/gateway-contract-tests/seed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func supplied(key, value string) Setting {
	return Setting{Key: key, Value: ldvalue.NewOptionalString(value)}
}

func notSupplied(key string) Setting {
	return Setting{Key: key}
}

type seederFunc func(ctx context.Context, id string) error

func (f seederFunc) Seed(ctx context.Context, id string) error { return f(ctx, id) }

func TestProceedsWithNoRequirements(t *testing.T) {
	d := Evaluate(Requirements{}, Preconditions{})
	assert.Equal(t, Proceed, d.Kind)
	assert.Equal(t, "", d.Reason)
}

func TestSkipsWhenSeedNeededAndNoSeeder(t *testing.T) {
	d := Evaluate(Requirements{NeedsSeed: true}, Preconditions{})
	assert.Equal(t, Skip, d.Kind)
	assert.Contains(t, d.Reason, "SEED_GUID_API")
	assert.Contains(t, d.Reason, "DB_CONN_STRING")
}

func TestProceedsWhenSeedNeededAndSeederAvailable(t *testing.T) {
	d := Evaluate(Requirements{NeedsSeed: true}, Preconditions{CanSeed: true})
	assert.Equal(t, Proceed, d.Kind)
}

func TestForceRunOverridesSeedSkip(t *testing.T) {
	d := Evaluate(Requirements{NeedsSeed: true}, Preconditions{ForceRun: true})
	assert.Equal(t, Proceed, d.Kind)
}

func TestSkipNamesEveryMissingSetting(t *testing.T) {
	req := Requirements{
		Settings: []Setting{notSupplied("FORCE_ERROR_ENDPOINT"), supplied("BASE_URL", "x"), notSupplied("UI_BASE_URL")},
	}
	d := Evaluate(req, Preconditions{CanSeed: true})
	assert.Equal(t, Skip, d.Kind)
	assert.Equal(t, "configuration not supplied: FORCE_ERROR_ENDPOINT, UI_BASE_URL", d.Reason)
}

func TestAnyOfNeedsOneMember(t *testing.T) {
	group := []Setting{notSupplied("CRASH_ENDPOINT"), notSupplied("SERVICE_CONTROL_CMD")}
	d := Evaluate(Requirements{AnyOf: [][]Setting{group}}, Preconditions{})
	assert.Equal(t, Skip, d.Kind)
	assert.Equal(t, "configuration not supplied: CRASH_ENDPOINT or SERVICE_CONTROL_CMD", d.Reason)

	group[1] = supplied("SERVICE_CONTROL_CMD", "systemctl restart gateway")
	d = Evaluate(Requirements{AnyOf: [][]Setting{group}}, Preconditions{})
	assert.Equal(t, Proceed, d.Kind)
}

func TestForceRunOverridesMissingSettings(t *testing.T) {
	req := Requirements{Settings: []Setting{notSupplied("FORCE_ERROR_ENDPOINT")}, NeedsSeed: true}
	assert.Equal(t, Proceed, Evaluate(req, Preconditions{ForceRun: true}).Kind)
}

func TestMissingSettingsAreReportedBeforeSeeding(t *testing.T) {
	req := Requirements{Settings: []Setting{notSupplied("TEST_POSTCODE")}, NeedsSeed: true}
	d := Evaluate(req, Preconditions{})
	assert.Equal(t, Skip, d.Kind)
	assert.Contains(t, d.Reason, "TEST_POSTCODE")
}

func TestEvaluateIsDeterministic(t *testing.T) {
	req := Requirements{AnyOf: [][]Setting{{notSupplied("A"), notSupplied("B")}}, NeedsSeed: true}
	pre := Preconditions{CanSeed: false}
	first := Evaluate(req, pre)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(req, pre))
	}
}

func TestFromConfig(t *testing.T) {
	env := map[string]string{
		"SEED_GUID_API":    "https://gateway.test/api/TestHelpers/SeedGuid",
		"NO_SKIP":          "1",
		"API_BEARER_TOKEN": "abc",
	}
	c, err := config.LoadFrom("", func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	require.NoError(t, err)

	pre := FromConfig(c)
	assert.True(t, pre.CanSeed)
	assert.True(t, pre.ForceRun)
	assert.Equal(t, "Bearer abc", pre.AuthHeaders["Authorization"])

	assert.True(t, Require(c, "SEED_GUID_API").Value.IsDefined())
	assert.False(t, Require(c, "FORCE_ERROR_ENDPOINT").Value.IsDefined())
}

func TestSeedWithoutSeederProceeds(t *testing.T) {
	assert.Equal(t, Proceed, Seed(context.Background(), nil, "3fa85f64-5717-4562-b3fc-2c963f66afa6").Kind)
}

func TestSeedPassesGUIDToSeeder(t *testing.T) {
	var got string
	s := seederFunc(func(_ context.Context, id string) error {
		got = id
		return nil
	})
	d := Seed(context.Background(), s, "123e4567-e89b-12d3-a456-426614174000")
	assert.Equal(t, Proceed, d.Kind)
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", got)
}

func TestSeedFailureFailsFast(t *testing.T) {
	s := seederFunc(func(context.Context, string) error { return errors.New("connection refused") })
	d := Seed(context.Background(), s, "abc")
	assert.Equal(t, FailFast, d.Kind)
	assert.Equal(t, "seeding GUID abc failed: connection refused", d.Reason)
}

func TestSeedFailureCarriesStatusAndBody(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(500, nil, []byte(`{"error":"database locked"}`))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		client := apiclient.New(apiclient.Options{BaseURL: server.URL})
		d := Seed(context.Background(), seed.NewHTTPSeeder(client, "/api/TestHelpers/SeedGuid"), "abc")
		assert.Equal(t, FailFast, d.Kind)
		assert.Contains(t, d.Reason, "500")
		assert.Contains(t, d.Reason, "database locked")
	})
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "proceed", ProceedDecision().String())
	assert.Equal(t, "skip: no data", SkipWithReason("no data").String())
	assert.Equal(t, "fail fast: boom", FailFastWithReason("boom").String())
}
