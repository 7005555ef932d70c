package mapdatatests

import (
	"github.com/mapdata/gateway-contract-tests/apiclient"
	"github.com/mapdata/gateway-contract-tests/browser"
	"github.com/mapdata/gateway-contract-tests/config"
	"github.com/mapdata/gateway-contract-tests/framework"
	"github.com/mapdata/gateway-contract-tests/gate"
	"github.com/mapdata/gateway-contract-tests/seed"
)

// Dependencies are the collaborators of the suite that are not derived from the configuration
// alone. A nil Seeder means that scenarios needing seeded data are skipped unless NO_SKIP is set.
// A nil Browsers or Commands gets the default implementation.
type Dependencies struct {
	Seeder   seed.Seeder
	Browsers browser.Factory
	Commands CommandRunner
}

func RunTestSuite(
	harness *framework.TestHarness,
	cfg config.Config,
	deps Dependencies,
	filter framework.Filter,
	testLogger framework.TestLogger,
) framework.Results {
	client := apiclient.New(apiclient.Options{
		BaseURL:    harness.TargetBaseURL(),
		Headers:    cfg.AuthHeaders(),
		HTTPClient: harness.HTTPClient(),
	})
	pre := gate.FromConfig(cfg)
	// The seeder can be supplied directly rather than through the configuration.
	pre.CanSeed = pre.CanSeed || deps.Seeder != nil
	env := &environment{
		config:        cfg,
		client:        client,
		preconditions: pre,
		seeder:        deps.Seeder,
		browsers:      deps.Browsers,
		commands:      deps.Commands,
	}
	if env.browsers == nil {
		env.browsers = browser.RodFactory(browser.Options{
			ControlURL: cfg.UI.BrowserControlURL.StringValue(),
			Logger:     harness.Logger(),
		})
	}
	if env.commands == nil {
		env.commands = ShellCommandRunner{}
	}

	return framework.Run(filter, testLogger, func(c *framework.Context) {
		t := &T{context: c, env: env}

		t.Run("ValidateGuid GET", DoValidateGUIDGetTests)
		t.Run("ValidateGuid POST", DoValidateGUIDPostTests)
		t.Run("MapDatas", DoMapDataTests)
		t.Run("error handling", DoErrorHandlingTests)
		t.Run("recovery after crash", DoRecoveryTests)
		t.Run("candidate profile UI", DoCandidateProfileTests)
	})
}
