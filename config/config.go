// Package config builds the harness configuration once at startup, from built-in defaults, an
// optional YAML file, and environment variables, in increasing order of precedence.
//
// A value that is empty, or that still holds a legacy "PLACEHOLDER..." marker, counts as not
// supplied and is represented as an undefined ldvalue.OptionalString.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
	"gopkg.in/yaml.v3"
)

const placeholderPrefix = "PLACEHOLDER"

const (
	DefaultBaseURL              = "https://localhost:7203"
	DefaultValidateGUIDEndpoint = "/api/ValidateGuid"
	DefaultMapDataEndpoint      = "/api/MapDatas"
	DefaultRecoveryTimeout      = time.Second * 60
	DefaultRecoveryPollInterval = time.Second * 2
)

// Config is the complete harness configuration. It is built once by Load and then passed by
// value to whatever needs it.
type Config struct {
	BaseURL              string
	ValidateGUIDEndpoint string
	MapDataEndpoint      string
	InsecureTLS          bool

	TestGUID     ldvalue.OptionalString
	TestPostCode ldvalue.OptionalString

	SeedGUIDAPI  ldvalue.OptionalString
	DBConnString ldvalue.OptionalString

	BearerToken ldvalue.OptionalString
	APIKey      ldvalue.OptionalString
	NoAuth      bool
	NoSkip      bool

	ForceErrorEndpoint   ldvalue.OptionalString
	ClearErrorEndpoint   ldvalue.OptionalString
	HealthEndpoint       ldvalue.OptionalString
	CrashEndpoint        ldvalue.OptionalString
	ServiceControlCmd    ldvalue.OptionalString
	RecoveryTimeout      time.Duration
	RecoveryPollInterval time.Duration

	UI UIConfig
}

// UIConfig configures the browser-driven candidate profile flow.
type UIConfig struct {
	BaseURL           ldvalue.OptionalString
	LoginPath         ldvalue.OptionalString
	Username          ldvalue.OptionalString
	Password          ldvalue.OptionalString
	CandidateEmail    ldvalue.OptionalString
	BrowserControlURL ldvalue.OptionalString
	Selectors         Selectors
}

// Selectors are the CSS selectors of the candidate management UI. CandidateRow may contain the
// marker %EMAIL%, which is replaced with the candidate's email address.
type Selectors struct {
	UsernameField     ldvalue.OptionalString
	PasswordField     ldvalue.OptionalString
	LoginButton       ldvalue.OptionalString
	EmailSearchInput  ldvalue.OptionalString
	EmailSearchButton ldvalue.OptionalString
	CandidateRow      ldvalue.OptionalString
	SkillInput        ldvalue.OptionalString
	ExperienceInput   ldvalue.OptionalString
	SaveButton        ldvalue.OptionalString
	SuccessMessage    ldvalue.OptionalString
}

// Default returns the configuration used when nothing is supplied.
func Default() Config {
	return Config{
		BaseURL:              DefaultBaseURL,
		ValidateGUIDEndpoint: DefaultValidateGUIDEndpoint,
		MapDataEndpoint:      DefaultMapDataEndpoint,
		InsecureTLS:          true,
		RecoveryTimeout:      DefaultRecoveryTimeout,
		RecoveryPollInterval: DefaultRecoveryPollInterval,
	}
}

// Load builds the configuration from an optional YAML file (pass "" for none) and the process
// environment.
func Load(path string) (Config, error) {
	return LoadFrom(path, os.LookupEnv)
}

// LoadFrom is like Load but reads environment variables through lookupEnv.
//
// The YAML file is a flat mapping that uses the same keys as the environment variables:
//
//	BASE_URL: https://gateway.test:7203
//	SEED_GUID_API: https://gateway.test:7203/api/TestHelpers/SeedGuid
//	RECOVERY_TIMEOUT_MS: 30000
func LoadFrom(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	values := make(map[string]string)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &values); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	c := Default()
	for key := range c.stringBindings() {
		if v, ok := lookupEnv(key); ok {
			values[key] = v
		}
	}
	for _, key := range append(boolKeys, durationKeys...) {
		if v, ok := lookupEnv(key); ok {
			values[key] = v
		}
	}

	var unknown []string
	for key, value := range values {
		if err := c.set(key, value); err != nil {
			return Config{}, err
		} else if !c.isKnown(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Config{}, fmt.Errorf("unknown configuration keys in %s: %s", path, strings.Join(unknown, ", "))
	}
	return c, nil
}

var boolKeys = []string{"NO_AUTH", "NO_SKIP", "INSECURE_TLS"}

var durationKeys = []string{"RECOVERY_TIMEOUT_MS", "RECOVERY_POLL_INTERVAL_MS"}

var requiredStringKeys = map[string]bool{"BASE_URL": true, "ENDPOINT": true, "MAPDATA_ENDPOINT": true}

func (c *Config) stringBindings() map[string]*ldvalue.OptionalString {
	s := &c.UI.Selectors
	return map[string]*ldvalue.OptionalString{
		"TEST_GUID":                       &c.TestGUID,
		"TEST_POSTCODE":                   &c.TestPostCode,
		"SEED_GUID_API":                   &c.SeedGUIDAPI,
		"DB_CONN_STRING":                  &c.DBConnString,
		"API_BEARER_TOKEN":                &c.BearerToken,
		"API_KEY":                         &c.APIKey,
		"FORCE_ERROR_ENDPOINT":            &c.ForceErrorEndpoint,
		"CLEAR_ERROR_ENDPOINT":            &c.ClearErrorEndpoint,
		"HEALTH_ENDPOINT":                 &c.HealthEndpoint,
		"CRASH_ENDPOINT":                  &c.CrashEndpoint,
		"SERVICE_CONTROL_CMD":             &c.ServiceControlCmd,
		"UI_BASE_URL":                     &c.UI.BaseURL,
		"LOGIN_PATH":                      &c.UI.LoginPath,
		"TEST_USERNAME":                   &c.UI.Username,
		"TEST_PASSWORD":                   &c.UI.Password,
		"CANDIDATE_EMAIL":                 &c.UI.CandidateEmail,
		"BROWSER_CONTROL_URL":             &c.UI.BrowserControlURL,
		"UI_SELECTOR_USERNAME_FIELD":      &s.UsernameField,
		"UI_SELECTOR_PASSWORD_FIELD":      &s.PasswordField,
		"UI_SELECTOR_LOGIN_BUTTON":        &s.LoginButton,
		"UI_SELECTOR_EMAIL_SEARCH_INPUT":  &s.EmailSearchInput,
		"UI_SELECTOR_EMAIL_SEARCH_BUTTON": &s.EmailSearchButton,
		"UI_SELECTOR_CANDIDATE_ROW":       &s.CandidateRow,
		"UI_SELECTOR_SKILL_INPUT":         &s.SkillInput,
		"UI_SELECTOR_EXPERIENCE_INPUT":    &s.ExperienceInput,
		"UI_SELECTOR_SAVE_BUTTON":         &s.SaveButton,
		"UI_SELECTOR_SUCCESS_MESSAGE":     &s.SuccessMessage,
		"BASE_URL":                        nil,
		"ENDPOINT":                        nil,
		"MAPDATA_ENDPOINT":                nil,
	}
}

func (c *Config) isKnown(key string) bool {
	if _, ok := c.stringBindings()[key]; ok {
		return true
	}
	for _, k := range append(boolKeys, durationKeys...) {
		if k == key {
			return true
		}
	}
	return false
}

func (c *Config) set(key, value string) error {
	if requiredStringKeys[key] {
		if !supplied(value) {
			return nil
		}
		switch key {
		case "BASE_URL":
			c.BaseURL = strings.TrimRight(value, "/")
		case "ENDPOINT":
			c.ValidateGUIDEndpoint = value
		case "MAPDATA_ENDPOINT":
			c.MapDataEndpoint = value
		}
		return nil
	}
	if dst := c.stringBindings()[key]; dst != nil {
		*dst = Optional(value)
		return nil
	}
	switch key {
	case "NO_AUTH":
		c.NoAuth = parseFlag(value, false)
	case "NO_SKIP":
		c.NoSkip = parseFlag(value, false)
	case "INSECURE_TLS":
		c.InsecureTLS = parseFlag(value, true)
	case "RECOVERY_TIMEOUT_MS", "RECOVERY_POLL_INTERVAL_MS":
		if !supplied(value) {
			return nil
		}
		ms, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || ms <= 0 {
			return fmt.Errorf("%s must be a positive number of milliseconds, got %q", key, value)
		}
		if key == "RECOVERY_TIMEOUT_MS" {
			c.RecoveryTimeout = time.Duration(ms) * time.Millisecond
		} else {
			c.RecoveryPollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	return nil
}

// Lookup returns an optional value by its environment variable name. Unknown names and names of
// non-optional settings return an undefined value.
func (c Config) Lookup(key string) ldvalue.OptionalString {
	if dst := c.stringBindings()[key]; dst != nil {
		return *dst
	}
	return ldvalue.OptionalString{}
}

// Optional converts a raw configuration value to an optional one. Empty values and legacy
// placeholder markers are treated as not supplied.
func Optional(value string) ldvalue.OptionalString {
	if !supplied(value) {
		return ldvalue.OptionalString{}
	}
	return ldvalue.NewOptionalString(value)
}

func supplied(value string) bool {
	v := strings.TrimSpace(value)
	return v != "" && !strings.HasPrefix(v, placeholderPrefix)
}

// parseFlag accepts "1" and "true" (any case) as set, "0" and "false" as unset, and returns
// defaultValue for anything else.
func parseFlag(value string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true":
		return true
	case "0", "false":
		return false
	default:
		return defaultValue
	}
}

// CanSeed reports whether any seeding mechanism is configured.
func (c Config) CanSeed() bool {
	return c.SeedGUIDAPI.IsDefined() || c.DBConnString.IsDefined()
}

// AuthHeaders returns the headers sent with every request to the backend. The bearer token is
// omitted when NO_AUTH is set; the API key is always sent if configured.
func (c Config) AuthHeaders() map[string]string {
	headers := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
	if token := c.BearerToken; token.IsDefined() && !c.NoAuth {
		headers["Authorization"] = "Bearer " + token.StringValue()
	}
	if key := c.APIKey; key.IsDefined() {
		headers["X-Api-Key"] = key.StringValue()
	}
	return headers
}

// GUIDOr returns TEST_GUID if it was supplied, or else the scenario's default.
func (c Config) GUIDOr(defaultGUID string) string {
	return c.TestGUID.OrElse(defaultGUID)
}
