package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mapdata/gateway-contract-tests/apiclient"
	"github.com/mapdata/gateway-contract-tests/browser"
	"github.com/mapdata/gateway-contract-tests/config"
	"github.com/mapdata/gateway-contract-tests/framework"
	"github.com/mapdata/gateway-contract-tests/mapdatatests"
	"github.com/mapdata/gateway-contract-tests/mockbackend"
	"github.com/mapdata/gateway-contract-tests/seed"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errTestsFailed makes the process exit with a nonzero status without printing anything more;
// the failures have already been reported.
var errTestsFailed = errors.New("some tests failed")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var params commandParams
	root := &cobra.Command{
		Use:           "mapdata-contract-tests",
		Short:         "Run contract tests against a map data gateway",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(params)
		},
	}
	params.bind(root)
	root.AddCommand(newMockServerCommand())
	return root
}

func newLogger(debug bool) (*zap.Logger, error) {
	if !debug {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func runTests(params commandParams) error {
	cfg, err := config.Load(params.configFile)
	if err != nil {
		return err
	}
	if params.baseURL != "" {
		cfg.BaseURL = params.baseURL
	}

	logger, err := newLogger(params.debugAll)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	mainDebugLogger := framework.ZapLogger(logger)

	harness, err := framework.NewTestHarness(
		cfg.BaseURL,
		apiclient.NewHTTPClient(cfg.InsecureTLS, 0),
		params.statusQueryTimeout,
		mainDebugLogger,
		os.Stdout,
	)
	if err != nil {
		return fmt.Errorf("backend error: %w", err)
	}

	seedClient := apiclient.New(apiclient.Options{
		BaseURL:     cfg.BaseURL,
		Headers:     cfg.AuthHeaders(),
		InsecureTLS: cfg.InsecureTLS,
		Logger:      mainDebugLogger,
	})
	seeder, closeSeeder, err := seed.FromConfig(cfg, seedClient, mainDebugLogger)
	if err != nil {
		return err
	}
	if closeSeeder != nil {
		defer func() { _ = closeSeeder() }()
	}

	fmt.Println()
	framework.PrintFilterDescription(params.filters)

	fmt.Println("Running test suite")

	testLogger := &ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	deps := mapdatatests.Dependencies{
		Seeder: seeder,
		Browsers: browser.RodFactory(browser.Options{
			ControlURL: cfg.UI.BrowserControlURL.StringValue(),
			Logger:     mainDebugLogger,
		}),
		Commands: mapdatatests.ShellCommandRunner{},
	}

	results := mapdatatests.RunTestSuite(harness, cfg, deps, params.filters.AsFilter, testLogger)

	fmt.Println()
	framework.PrintResults(results)
	if !results.OK() {
		return errTestsFailed
	}
	return nil
}

func newMockServerCommand() *cobra.Command {
	var params mockServerParams
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-process stand-in for the map data backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMockServer(params)
		},
	}
	params.bind(cmd)
	return cmd
}

func runMockServer(params mockServerParams) error {
	newZap := zap.NewProduction
	if params.verbose {
		newZap = zap.NewDevelopment
	}
	logger, err := newZap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	connString := params.dbConnString
	if connString == "" {
		dir, err := os.MkdirTemp("", "mapdata-mock")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		connString = "sqlite://" + filepath.Join(dir, "mapdata.db")
	}
	store, err := mockbackend.OpenStore(connString)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !params.noSampleData {
		if err := store.LoadSampleData(ctx); err != nil {
			return err
		}
	}

	backend := mockbackend.NewServer(store, mockbackend.Options{
		BearerToken:   params.bearerToken,
		APIKey:        params.apiKey,
		CrashDuration: params.crashDuration,
		Logger:        logger,
	})
	server := &http.Server{Addr: params.address, Handler: backend, ReadHeaderTimeout: time.Second * 10}

	logger.Info("mock backend listening",
		zap.String("address", params.address),
		zap.String("db", connString),
		zap.String("seedEndpoint", mockbackend.SeedGUIDPath),
		zap.String("forceErrorEndpoint", mockbackend.ForceErrorPath),
		zap.String("clearErrorEndpoint", mockbackend.ClearErrorPath),
		zap.String("crashEndpoint", mockbackend.CrashPath),
		zap.String("healthEndpoint", mockbackend.HealthPath))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
