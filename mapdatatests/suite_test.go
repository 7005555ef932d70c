package mapdatatests

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mapdata/gateway-contract-tests/apiclient"
	"github.com/mapdata/gateway-contract-tests/browser"
	"github.com/mapdata/gateway-contract-tests/config"
	"github.com/mapdata/gateway-contract-tests/framework"
	"github.com/mapdata/gateway-contract-tests/mockbackend"
	"github.com/mapdata/gateway-contract-tests/seed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	errorSettleDelay = 0
	unavailabilityTimeout = time.Second
	unavailabilityPollInterval = time.Millisecond * 20
}

type testBackend struct {
	server  *mockbackend.Server
	store   *mockbackend.Store
	harness *framework.TestHarness
	dbPath  string
}

func startBackend(t *testing.T, opts mockbackend.Options) *testBackend {
	dbPath := filepath.Join(t.TempDir(), "mapdata.db")
	store, err := mockbackend.OpenStore("sqlite://" + dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.LoadSampleData(context.Background()))

	backend := mockbackend.NewServer(store, opts)
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	harness, err := framework.NewTestHarness(server.URL, nil, time.Second*5, nil, io.Discard)
	require.NoError(t, err)
	return &testBackend{server: backend, store: store, harness: harness, dbPath: dbPath}
}

func (b *testBackend) run(cfg config.Config, deps Dependencies, only string) framework.Results {
	return b.runLogged(cfg, deps, only, nil)
}

func (b *testBackend) runLogged(cfg config.Config, deps Dependencies, only string, testLogger framework.TestLogger) framework.Results {
	filter := func(id framework.TestID) bool {
		return only == "" || strings.HasPrefix(id.String(), only) || strings.HasPrefix(only, id.String())
	}
	if deps.Browsers == nil {
		deps.Browsers = func(context.Context) (browser.Driver, error) {
			return nil, errors.New("no browser in this test")
		}
	}
	return RunTestSuite(b.harness, cfg, deps, filter, testLogger)
}

func newSeeder(t *testing.T, b *testBackend, cfg config.Config) seed.Seeder {
	client := apiclient.New(apiclient.Options{BaseURL: b.harness.TargetBaseURL(), Headers: cfg.AuthHeaders()})
	seeder, closer, err := seed.FromConfig(cfg, client, nil)
	require.NoError(t, err)
	require.NotNil(t, seeder)
	if closer != nil {
		t.Cleanup(func() { _ = closer() })
	}
	return seeder
}

func findResult(t *testing.T, results framework.Results, path string) framework.TestResult {
	for _, r := range results.Tests {
		if r.TestID.String() == path {
			return r
		}
	}
	require.Fail(t, "test was not run", path)
	return framework.TestResult{}
}

func requirePassed(t *testing.T, results framework.Results, path string) {
	r := findResult(t, results, path)
	require.False(t, r.Skipped, "%s was skipped: %s", path, r.SkipReason)
	require.Empty(t, r.Errors, "%s failed", path)
}

func requireSkipped(t *testing.T, results framework.Results, path string) framework.TestResult {
	r := findResult(t, results, path)
	require.True(t, r.Skipped, "%s should have been skipped", path)
	return r
}

func requireFailed(t *testing.T, results framework.Results, path string) framework.TestResult {
	r := findResult(t, results, path)
	require.False(t, r.Skipped, "%s was skipped: %s", path, r.SkipReason)
	require.NotEmpty(t, r.Errors, "%s should have failed", path)
	return r
}

const (
	getExisting  = "ValidateGuid GET/returns true for existing GUID"
	postExisting = "ValidateGuid POST/returns true for existing GUID"
	errorTest    = "error handling/returns an error and no entries when retrieval fails"
	recoveryTest = "recovery after crash/responds correctly after recovering from a crash"
	uiTest       = "candidate profile UI/updates skill and experience"
)

func TestSeededScenariosSkipWithoutSeedingMechanism(t *testing.T) {
	b := startBackend(t, mockbackend.Options{})
	results := b.run(config.Default(), Dependencies{}, "")

	assert.True(t, results.OK(), "failures: %+v", results.Failures)
	r := requireSkipped(t, results, getExisting)
	assert.Contains(t, r.SkipReason, "SEED_GUID_API")
	requireSkipped(t, results, postExisting)
	requireSkipped(t, results, errorTest)
	requireSkipped(t, results, recoveryTest)
	requireSkipped(t, results, uiTest)

	requirePassed(t, results, "ValidateGuid GET/returns false for non-existent GUID")
	requirePassed(t, results, "ValidateGuid GET/returns false for empty GUID")
	requirePassed(t, results, "ValidateGuid GET/rejects or returns false for invalid GUID format")
	requirePassed(t, results, "ValidateGuid POST/returns false for non-existent GUID")
	requirePassed(t, results, "ValidateGuid POST/returns 400 for invalid GUID format")
	requirePassed(t, results, "MapDatas/list has required fields")
	requirePassed(t, results, "MapDatas/filter by post code")
}

func TestExistingGUIDWithHTTPSeeding(t *testing.T) {
	b := startBackend(t, mockbackend.Options{BearerToken: "secret"})
	cfg := config.Default()
	cfg.SeedGUIDAPI = config.Optional(mockbackend.SeedGUIDPath)
	cfg.BearerToken = config.Optional("secret")
	cfg.TestGUID = config.Optional("7c9e6679-7425-40de-944b-e07fc1f90ae7")

	results := b.run(cfg, Dependencies{Seeder: newSeeder(t, b, cfg)}, "ValidateGuid")

	assert.True(t, results.OK(), "failures: %+v", results.Failures)
	requirePassed(t, results, getExisting)
	requirePassed(t, results, postExisting)

	exists, err := b.store.Exists(context.Background(), "7c9e6679-7425-40de-944b-e07fc1f90ae7")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExistingGUIDWithDatabaseSeeding(t *testing.T) {
	b := startBackend(t, mockbackend.Options{})
	cfg := config.Default()
	cfg.DBConnString = config.Optional("sqlite://" + b.dbPath)

	results := b.run(cfg, Dependencies{Seeder: newSeeder(t, b, cfg)}, "ValidateGuid GET")

	assert.True(t, results.OK(), "failures: %+v", results.Failures)
	requirePassed(t, results, getExisting)
}

func TestForceRunWithoutSeedingRunsAndFails(t *testing.T) {
	b := startBackend(t, mockbackend.Options{})
	cfg := config.Default()
	cfg.NoSkip = true

	results := b.run(cfg, Dependencies{}, getExisting)

	assert.False(t, results.OK())
	r := requireFailed(t, results, getExisting)
	assert.Contains(t, fmt.Sprint(r.Errors), "did not indicate true")
}

func TestSeedingFailureFailsFast(t *testing.T) {
	b := startBackend(t, mockbackend.Options{})
	cfg := config.Default()
	cfg.SeedGUIDAPI = config.Optional("/api/NoSuchSeedEndpoint")

	results := b.run(cfg, Dependencies{Seeder: newSeeder(t, b, cfg)}, getExisting)

	r := requireFailed(t, results, getExisting)
	assert.Contains(t, fmt.Sprint(r.Errors), "404")
}

func TestPostCodeFromConfiguration(t *testing.T) {
	b := startBackend(t, mockbackend.Options{})
	cfg := config.Default()
	cfg.TestPostCode = config.Optional("3000")

	results := b.run(cfg, Dependencies{}, "MapDatas/filter by post code")
	requirePassed(t, results, "MapDatas/filter by post code")

	cfg.TestPostCode = config.Optional("9999")
	results = b.run(cfg, Dependencies{}, "MapDatas/filter by post code")
	requireFailed(t, results, "MapDatas/filter by post code")
}

func TestErrorHandling(t *testing.T) {
	b := startBackend(t, mockbackend.Options{})
	cfg := config.Default()
	cfg.ForceErrorEndpoint = config.Optional(mockbackend.ForceErrorPath)
	cfg.ClearErrorEndpoint = config.Optional(mockbackend.ClearErrorPath)

	results := b.run(cfg, Dependencies{}, "error handling")
	requirePassed(t, results, errorTest)

	// the forced error was cleared afterward
	results = b.run(cfg, Dependencies{}, "MapDatas/list has required fields")
	requirePassed(t, results, "MapDatas/list has required fields")
}

// debugOutputLogger keeps the debug output of each finished test.
type debugOutputLogger struct {
	output map[string]string
}

func (l *debugOutputLogger) TestStarted(framework.TestID)         {}
func (l *debugOutputLogger) TestError(framework.TestID, error)    {}
func (l *debugOutputLogger) TestSkipped(framework.TestID, string) {}
func (l *debugOutputLogger) TestFinished(id framework.TestID, _ bool, debugOutput framework.CapturedOutput) {
	var buf bytes.Buffer
	debugOutput.Dump(&buf, "")
	l.output[id.String()] = buf.String()
}

func TestErrorHandlingFailsWhenForceErrorEndpointIsRejected(t *testing.T) {
	b := startBackend(t, mockbackend.Options{})
	cfg := config.Default()
	cfg.ForceErrorEndpoint = config.Optional("/api/TestHelpers/NoSuchForceError")

	results := b.run(cfg, Dependencies{}, "error handling")
	r := requireFailed(t, results, errorTest)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0].Error(), "force error request failed")
	assert.Contains(t, r.Errors[0].Error(), "NoSuchForceError returned unexpected status 404")
}

func TestErrorHandlingLogsRejectedClearCall(t *testing.T) {
	b := startBackend(t, mockbackend.Options{})
	cfg := config.Default()
	cfg.ForceErrorEndpoint = config.Optional(mockbackend.ForceErrorPath)
	cfg.ClearErrorEndpoint = config.Optional("/api/TestHelpers/NoSuchClearError")

	logger := &debugOutputLogger{output: make(map[string]string)}
	results := b.runLogged(cfg, Dependencies{}, "error handling", logger)
	requirePassed(t, results, errorTest)
	assert.Contains(t, logger.output[errorTest], "Clearing the forced error failed")
	assert.Contains(t, logger.output[errorTest], "NoSuchClearError returned unexpected status 404")
}

func TestRecoveryFailsWhenCrashEndpointIsRejected(t *testing.T) {
	b := startBackend(t, mockbackend.Options{CrashDuration: time.Millisecond * 300})
	cfg := config.Default()
	cfg.CrashEndpoint = config.Optional("/api/NoSuchCrashEndpoint")
	cfg.RecoveryTimeout = time.Second
	cfg.RecoveryPollInterval = time.Millisecond * 50

	results := b.run(cfg, Dependencies{}, "recovery after crash")
	r := requireFailed(t, results, recoveryTest)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0].Error(), "crash request failed")
	assert.Contains(t, r.Errors[0].Error(), "NoSuchCrashEndpoint returned unexpected status 404")
}

func TestRecoveryToleratesCrashConnectionError(t *testing.T) {
	b := startBackend(t, mockbackend.Options{})
	cfg := config.Default()
	cfg.CrashEndpoint = config.Optional("http://127.0.0.1:1/crash")
	cfg.RecoveryTimeout = time.Second
	cfg.RecoveryPollInterval = time.Millisecond * 50

	logger := &debugOutputLogger{output: make(map[string]string)}
	results := b.runLogged(cfg, Dependencies{}, "recovery after crash", logger)
	requirePassed(t, results, recoveryTest)
	assert.Contains(t, logger.output[recoveryTest], "crash request failed, continuing")
}

func TestRecoveryAfterCrashEndpoint(t *testing.T) {
	b := startBackend(t, mockbackend.Options{CrashDuration: time.Millisecond * 300})
	cfg := config.Default()
	cfg.CrashEndpoint = config.Optional(mockbackend.CrashPath)
	cfg.HealthEndpoint = config.Optional(mockbackend.HealthPath)
	cfg.RecoveryTimeout = time.Second * 5
	cfg.RecoveryPollInterval = time.Millisecond * 50

	results := b.run(cfg, Dependencies{}, "recovery after crash")
	requirePassed(t, results, recoveryTest)
}

func TestRecoveryWithServiceControlCommand(t *testing.T) {
	b := startBackend(t, mockbackend.Options{CrashDuration: time.Hour})
	cfg := config.Default()
	cfg.CrashEndpoint = config.Optional(mockbackend.CrashPath)
	cfg.ServiceControlCmd = config.Optional("systemctl restart map-gateway")
	cfg.RecoveryTimeout = time.Second * 5
	cfg.RecoveryPollInterval = time.Millisecond * 50

	commands := &fakeCommandRunner{action: b.server.Restart}
	results := b.run(cfg, Dependencies{Commands: commands}, "recovery after crash")
	requirePassed(t, results, recoveryTest)
	assert.Equal(t, []string{"systemctl restart map-gateway"}, commands.commands)
}

func TestRecoveryTimesOut(t *testing.T) {
	b := startBackend(t, mockbackend.Options{CrashDuration: time.Hour})
	cfg := config.Default()
	cfg.CrashEndpoint = config.Optional(mockbackend.CrashPath)
	cfg.RecoveryTimeout = time.Millisecond * 300
	cfg.RecoveryPollInterval = time.Millisecond * 50

	results := b.run(cfg, Dependencies{}, "recovery after crash")
	r := requireFailed(t, results, recoveryTest)
	assert.Contains(t, fmt.Sprint(r.Errors), "503")
}

func TestCandidateProfileUI(t *testing.T) {
	b := startBackend(t, mockbackend.Options{})
	cfg := config.Default()
	cfg.UI = config.UIConfig{
		BaseURL:        config.Optional("https://recruit.example.test/app/"),
		LoginPath:      config.Optional("login"),
		Username:       config.Optional("tester"),
		Password:       config.Optional("hunter2"),
		CandidateEmail: config.Optional("candidate@example.test"),
		Selectors: config.Selectors{
			UsernameField:     config.Optional("#username"),
			PasswordField:     config.Optional("#password"),
			LoginButton:       config.Optional("#login"),
			EmailSearchInput:  config.Optional("#search-email"),
			EmailSearchButton: config.Optional("#search"),
			CandidateRow:      config.Optional(`tr[data-email="%EMAIL%"]`),
			SkillInput:        config.Optional("#skill"),
			ExperienceInput:   config.Optional("#experience"),
			SaveButton:        config.Optional("#save"),
			SuccessMessage:    config.Optional(".toast-success"),
		},
	}

	driver := &fakeDriver{texts: map[string]string{".toast-success": " Profile updated "}}
	deps := Dependencies{Browsers: func(context.Context) (browser.Driver, error) { return driver, nil }}
	results := b.run(cfg, deps, "candidate profile UI")

	requirePassed(t, results, uiTest)
	assert.Equal(t, []string{
		"navigate https://recruit.example.test/app/",
		"navigate https://recruit.example.test/app/login",
		"fill #username tester",
		"fill #password hunter2",
		"click #login",
		"fill #search-email candidate@example.test",
		"click #search",
		`wait tr[data-email="candidate@example.test"]`,
		`click tr[data-email="candidate@example.test"]`,
		"fill #skill Business Analyst",
		"fill #experience 12",
		"click #save",
		"wait .toast-success",
		"text .toast-success",
	}, driver.actions)
	assert.True(t, driver.closed)
}

func TestCandidateProfileUIFailsOnEmptySuccessMessage(t *testing.T) {
	b := startBackend(t, mockbackend.Options{})
	cfg := config.Default()
	cfg.NoSkip = true

	driver := &fakeDriver{}
	deps := Dependencies{Browsers: func(context.Context) (browser.Driver, error) { return driver, nil }}
	results := b.run(cfg, deps, "candidate profile UI")

	requireFailed(t, results, uiTest)
	assert.True(t, driver.closed)
}

func TestCandidateRowSelector(t *testing.T) {
	assert.Equal(t, `tr[data-email="a@b.test"]`, CandidateRowSelector(`tr[data-email="%EMAIL%"]`, "a@b.test"))
	assert.Equal(t, "#first-row", CandidateRowSelector("#first-row", "a@b.test"))
}

type fakeDriver struct {
	actions []string
	texts   map[string]string
	closed  bool
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.actions = append(d.actions, "navigate "+url)
	return nil
}

func (d *fakeDriver) Fill(_ context.Context, selector, text string) error {
	d.actions = append(d.actions, "fill "+selector+" "+text)
	return nil
}

func (d *fakeDriver) Click(_ context.Context, selector string) error {
	d.actions = append(d.actions, "click "+selector)
	return nil
}

func (d *fakeDriver) WaitVisible(_ context.Context, selector string) error {
	d.actions = append(d.actions, "wait "+selector)
	return nil
}

func (d *fakeDriver) Text(_ context.Context, selector string) (string, error) {
	d.actions = append(d.actions, "text "+selector)
	return d.texts[selector], nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

type fakeCommandRunner struct {
	commands []string
	action   func()
}

func (r *fakeCommandRunner) Run(_ context.Context, command string, logger framework.Logger) error {
	logger.Printf("fake run: %s", command)
	r.commands = append(r.commands, command)
	if r.action != nil {
		r.action()
	}
	return nil
}

func TestShellCommandRunner(t *testing.T) {
	logger := &framework.CapturingLogger{}
	require.NoError(t, ShellCommandRunner{}.Run(context.Background(), "echo 'restarted ok'", logger))
	var buf bytes.Buffer
	logger.Output().Dump(&buf, "")
	assert.Contains(t, buf.String(), "restarted ok")

	err := ShellCommandRunner{}.Run(context.Background(), "exit 3", logger)
	assert.Error(t, err)
}
