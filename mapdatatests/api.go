package mapdatatests

import (
	"context"
	"errors"

	"github.com/mapdata/gateway-contract-tests/apiclient"
	"github.com/mapdata/gateway-contract-tests/browser"
	"github.com/mapdata/gateway-contract-tests/config"
	"github.com/mapdata/gateway-contract-tests/framework"
	"github.com/mapdata/gateway-contract-tests/gate"
	"github.com/mapdata/gateway-contract-tests/normalize"
	"github.com/mapdata/gateway-contract-tests/seed"

	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type environment struct {
	config        config.Config
	client        *apiclient.Client
	preconditions gate.Preconditions
	seeder        seed.Seeder
	browsers      browser.Factory
	commands      CommandRunner
}

// T represents a test or subtest in the map data test suite.
//
// It implements the same basic functionality as Go's testing.T, but in an environment that is outside
// of the Go test runner, and with some extra features such as debug logging that are convenient for
// our use case. Those features are provided by our lower-level framework package.
//
// It also provides functionality that is specific to testing the gateway: an HTTP client bound to
// the backend, whose requests are logged to the test's debug output, and the precondition checks
// that decide whether a scenario can run in the current environment.
//
// To make test assertions, you can use the assert and require packages, passing the *T as if it were
// a *testing.T.
type T struct {
	context *framework.Context
	env     *environment
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest. This is equivalent to the Run method of testing.T.
func (t *T) Run(name string, action func(*T)) {
	t.context.Run(name, func(c *framework.Context) {
		action(&T{context: c, env: t.env})
	})
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// Defer schedules a cleanup function to run when the test ends.
func (t *T) Defer(fn func()) {
	t.context.Defer(fn)
}

// Context returns the context for blocking operations in the test.
func (t *T) Context() context.Context {
	return context.Background()
}

func (t *T) Config() config.Config {
	return t.env.config
}

// Client returns the backend client, logging to this test's debug output.
func (t *T) Client() *apiclient.Client {
	return t.env.client.WithLogger(t.context.DebugLogger())
}

// Require evaluates the precondition gate for this test. It skips the test if the gate says
// Skip. It never fails the test.
func (t *T) Require(req gate.Requirements) {
	t.apply(gate.Evaluate(req, t.env.preconditions))
}

// RequireSeeded makes sure the GUID exists in the backend, through whatever seeding mechanism is
// configured. The test fails and immediately exits if seeding fails.
func (t *T) RequireSeeded(guid string) {
	t.apply(gate.Seed(t.Context(), t.env.seeder, guid))
}

func (t *T) apply(d gate.Decision) {
	switch d.Kind {
	case gate.Skip:
		t.context.SkipWithReason(d.Reason)
	case gate.FailFast:
		require.Fail(t, "precondition failed", d.Reason)
	}
}

// Setting looks up a configuration value by its environment variable name.
func (t *T) Setting(key string) gate.Setting {
	return gate.Require(t.env.config, key)
}

// Get sends a GET request to the backend. The test fails and immediately exits if no response
// is received.
func (t *T) Get(path string) apiclient.Response {
	resp, err := t.Client().Get(t.Context(), path)
	require.NoError(t, err)
	return resp
}

// Post sends a POST request with a JSON body to the backend. The test fails and immediately
// exits if no response is received.
func (t *T) Post(path string, body interface{}) apiclient.Response {
	resp, err := t.Client().Post(t.Context(), path, body)
	require.NoError(t, err)
	return resp
}

// RequireStatus fails the test and immediately exits if the response does not have the expected
// status. The failure message includes the response body.
func (t *T) RequireStatus(resp apiclient.Response, status int) {
	require.Equal(t, status, resp.StatusCode, "unexpected status; response body: %s", resp.Body)
}

// RequireOutcome fails the test if the normalized response body is not the expected outcome.
func (t *T) RequireOutcome(resp apiclient.Response, expected normalize.Outcome) {
	require.Equal(t, expected, normalize.Normalize(resp.Body),
		"response body did not indicate %s: %s", expected, resp.Body)
}

// RequireJSON parses the response body, failing the test if it is not structured data.
func (t *T) RequireJSON(resp apiclient.Response) ldvalue.Value {
	value := normalize.Parse(resp.Body)
	switch value.Type() {
	case ldvalue.ArrayType, ldvalue.ObjectType:
		return value
	}
	require.Fail(t, "response body is not a JSON object or array", "body: %s", resp.Body)
	return value
}

// postControl calls one of the backend's test control endpoints. A transport error is returned as
// is; a response with a non-2xx status is returned as a *seed.ControlCallError.
func (t *T) postControl(endpoint string) error {
	resp, err := t.Client().Post(t.Context(), endpoint, nil)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return &seed.ControlCallError{Endpoint: t.Client().URL(endpoint), StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

// requireControlCall is postControl for calls the test depends on. An unexpected status stops the
// test; a transport error is only logged, since a crashing service may drop the connection.
func (t *T) requireControlCall(endpoint, description string) {
	err := t.postControl(endpoint)
	var callErr *seed.ControlCallError
	if errors.As(err, &callErr) {
		require.Fail(t, description+" failed", callErr.Error())
	}
	if err != nil {
		t.Debug("%s failed, continuing: %s", description, err)
	}
}
