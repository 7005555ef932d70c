// Package normalize turns backend response bodies of unknown shape into values that tests can
// assert on.
//
// The backend under test is not consistent about how it encodes a yes/no answer: it may send a
// JSON boolean, a JSON string, bare text, or an object wrapping the boolean. Normalize reduces all
// of these to an Outcome.
package normalize

import (
	"encoding/json"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Outcome is the canonical boolean reading of a response body.
type Outcome int

const (
	// Indeterminate means the body carried no recognizable boolean signal.
	Indeterminate Outcome = iota
	True
	False
)

func (o Outcome) String() string {
	switch o {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "indeterminate"
	}
}

// Bool returns the outcome as a bool, and false for ok if it is Indeterminate.
func (o Outcome) Bool() (value bool, ok bool) {
	return o == True, o != Indeterminate
}

// FromBool converts a bool to an Outcome.
func FromBool(b bool) Outcome {
	if b {
		return True
	}
	return False
}

// wrapperKeys are the object keys that conventionally hold the boolean answer.
var wrapperKeys = []string{"value", "result"}

// Parse decodes the body as JSON. If that fails, the trimmed body text is returned as a string
// value instead; a decode failure is never an error.
func Parse(bodyText string) ldvalue.Value {
	text := strings.TrimSpace(bodyText)
	var v ldvalue.Value
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return ldvalue.String(text)
	}
	return v
}

// Normalize returns the boolean signal carried by a response body.
func Normalize(bodyText string) Outcome {
	return OutcomeOf(Parse(bodyText))
}

// OutcomeOf applies the normalization rules to an already-parsed body.
func OutcomeOf(v ldvalue.Value) Outcome {
	switch v.Type() {
	case ldvalue.BoolType:
		return FromBool(v.BoolValue())
	case ldvalue.StringType:
		switch strings.ToLower(strings.TrimSpace(v.StringValue())) {
		case "true":
			return True
		case "false":
			return False
		}
	case ldvalue.ObjectType:
		return objectOutcome(v)
	}
	return Indeterminate
}

// objectOutcome looks at the wrapper keys first and only scans the other values if none of them
// holds a boolean. Within either step a true wins over a false.
func objectOutcome(obj ldvalue.Value) Outcome {
	if o := firstBoolean(obj, wrapperKeys); o != Indeterminate {
		return o
	}
	return firstBoolean(obj, obj.Keys())
}

func firstBoolean(obj ldvalue.Value, keys []string) Outcome {
	result := Indeterminate
	for _, key := range keys {
		field := obj.GetByKey(key)
		if field.Type() != ldvalue.BoolType {
			continue
		}
		if field.BoolValue() {
			return True
		}
		result = False
	}
	return result
}
