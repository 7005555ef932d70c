package main

import (
	"time"

	"github.com/mapdata/gateway-contract-tests/framework"
	"github.com/mapdata/gateway-contract-tests/mockbackend"

	"github.com/spf13/cobra"
)

const (
	defaultStatusQueryTimeout = time.Second * 10
	defaultMockAddress        = "localhost:8111"
)

type commandParams struct {
	configFile         string
	baseURL            string
	filters            framework.RegexFilters
	statusQueryTimeout time.Duration
	debug              bool
	debugAll           bool
}

func (c *commandParams) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&c.configFile, "config", "", "YAML file with configuration values, keyed like the environment variables")
	fs.StringVar(&c.baseURL, "url", "", "backend base URL (overrides BASE_URL)")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.DurationVar(&c.statusQueryTimeout, "status-timeout", defaultStatusQueryTimeout, "how long to wait for the backend to be reachable")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
}

type mockServerParams struct {
	address       string
	dbConnString  string
	bearerToken   string
	apiKey        string
	crashDuration time.Duration
	noSampleData  bool
	verbose       bool
}

func (m *mockServerParams) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&m.address, "listen", defaultMockAddress, "address to listen on")
	fs.StringVar(&m.dbConnString, "db", "", "sqlite database for map data; a temporary one is created if empty")
	fs.StringVar(&m.bearerToken, "bearer-token", "", "require this bearer token on API requests")
	fs.StringVar(&m.apiKey, "api-key", "", "require this X-Api-Key on API requests")
	fs.DurationVar(&m.crashDuration, "crash-duration", mockbackend.DefaultCrashDuration, "how long a simulated crash lasts")
	fs.BoolVar(&m.noSampleData, "no-sample-data", false, "start with an empty database")
	fs.BoolVar(&m.verbose, "verbose", false, "log every request")
}
