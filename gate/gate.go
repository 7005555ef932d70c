// Package gate decides, before a scenario runs, whether its preconditions hold.
//
// Evaluate is pure: it looks only at the configuration it is given. Seeding the backend is a
// separate step, Seed, which a scenario performs only after Evaluate said Proceed.
package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/mapdata/gateway-contract-tests/config"
	"github.com/mapdata/gateway-contract-tests/seed"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Kind is the kind of a gate decision.
type Kind int

const (
	Proceed Kind = iota
	Skip
	FailFast
)

func (k Kind) String() string {
	switch k {
	case Proceed:
		return "proceed"
	case Skip:
		return "skip"
	case FailFast:
		return "fail fast"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Decision is the outcome of a gate. Reason is empty for Proceed.
type Decision struct {
	Kind   Kind
	Reason string
}

func ProceedDecision() Decision { return Decision{Kind: Proceed} }

func SkipWithReason(reason string) Decision { return Decision{Kind: Skip, Reason: reason} }

func FailFastWithReason(reason string) Decision { return Decision{Kind: FailFast, Reason: reason} }

func (d Decision) String() string {
	if d.Reason == "" {
		return d.Kind.String()
	}
	return d.Kind.String() + ": " + d.Reason
}

// Setting is a named configuration value that a scenario needs.
type Setting struct {
	Key   string
	Value ldvalue.OptionalString
}

// Requirements describe what a scenario needs from its environment.
type Requirements struct {
	// Settings must all be supplied. AnyOf groups need at least one supplied member each.
	Settings []Setting
	AnyOf    [][]Setting
	// NeedsSeed means the scenario relies on state that must be seeded into the backend first.
	NeedsSeed bool
}

// Preconditions is what the environment offers. It is derived once from the configuration and
// never changes during a test.
type Preconditions struct {
	CanSeed     bool
	ForceRun    bool
	AuthHeaders map[string]string
}

// FromConfig derives the preconditions from the harness configuration.
func FromConfig(c config.Config) Preconditions {
	return Preconditions{
		CanSeed:     c.CanSeed(),
		ForceRun:    c.NoSkip,
		AuthHeaders: c.AuthHeaders(),
	}
}

// Require is a shortcut for a Setting looked up from the configuration by key.
func Require(c config.Config, key string) Setting {
	return Setting{Key: key, Value: c.Lookup(key)}
}

// Evaluate applies the gate rules in order: unresolved settings skip the scenario, then a
// scenario that needs seeding skips if there is no way to seed. ForceRun overrides both.
func Evaluate(req Requirements, pre Preconditions) Decision {
	if missing := req.unresolved(); len(missing) > 0 && !pre.ForceRun {
		return SkipWithReason(fmt.Sprintf("configuration not supplied: %s", strings.Join(missing, ", ")))
	}
	if req.NeedsSeed && !pre.CanSeed && !pre.ForceRun {
		return SkipWithReason("no seeding mechanism (SEED_GUID_API or DB_CONN_STRING) configured" +
			" and NO_SKIP not set; the scenario's data cannot be guaranteed to exist")
	}
	return ProceedDecision()
}

func (req Requirements) unresolved() []string {
	var missing []string
	for _, s := range req.Settings {
		if !s.Value.IsDefined() {
			missing = append(missing, s.Key)
		}
	}
	for _, group := range req.AnyOf {
		var keys []string
		found := false
		for _, s := range group {
			keys = append(keys, s.Key)
			if s.Value.IsDefined() {
				found = true
			}
		}
		if !found && len(keys) > 0 {
			missing = append(missing, strings.Join(keys, " or "))
		}
	}
	return missing
}

// Seed makes sure the given GUID exists in the backend. With no seeder, which only happens when
// the scenario was forced to run, it does nothing. A seeding failure is FailFast and its reason
// carries the seeder's error, including any HTTP status and body.
func Seed(ctx context.Context, seeder seed.Seeder, guid string) Decision {
	if seeder == nil {
		return ProceedDecision()
	}
	if err := seeder.Seed(ctx, guid); err != nil {
		return FailFastWithReason(fmt.Sprintf("seeding GUID %s failed: %s", guid, err))
	}
	return ProceedDecision()
}
