package normalize

import (
	"regexp"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

var errorWordsRegex = regexp.MustCompile(`(?i)error|fail|exception|unable`)

// errorFieldKeys are object keys that, if present at all, mark a body as an error report.
var errorFieldKeys = []string{"error", "message", "detail", "title", "errors"}

// MentionsAll reports whether the error text in a body contains every one of the given words,
// ignoring case.
//
// For an object body the error text is the string under "error", else the string under
// "message", else the JSON of "errors", else the JSON of the whole object. For any other body it
// is the body's string form.
func MentionsAll(bodyText string, words ...string) bool {
	text, _ := errorText(Parse(bodyText))
	return containsAll(text, words)
}

// ErrorFieldsMentionAll is like MentionsAll, but only accepts a plain text body or an object
// with an "error", "message" or "errors" field. Any other shape does not match.
func ErrorFieldsMentionAll(bodyText string, words ...string) bool {
	text, conventional := errorText(Parse(bodyText))
	return conventional && containsAll(text, words)
}

func containsAll(text string, words []string) bool {
	text = strings.ToLower(text)
	for _, w := range words {
		if !strings.Contains(text, strings.ToLower(w)) {
			return false
		}
	}
	return true
}

// errorText returns the error text of a body and whether it came from a text body or a
// conventional error field.
func errorText(v ldvalue.Value) (string, bool) {
	switch v.Type() {
	case ldvalue.StringType:
		return v.StringValue(), true
	case ldvalue.ObjectType:
		for _, key := range []string{"error", "message"} {
			if field := v.GetByKey(key); field.Type() == ldvalue.StringType {
				return field.StringValue(), true
			}
		}
		if errs := v.GetByKey("errors"); !errs.IsNull() {
			return errs.JSONString(), true
		}
		return v.JSONString(), false
	default:
		return v.JSONString(), false
	}
}

// HasErrorIndication reports whether a body looks like an error report: a non-empty text that
// mentions an error, or an object that has a conventional error field or mentions an error in
// any of its values.
func HasErrorIndication(bodyText string) bool {
	v := Parse(bodyText)
	switch v.Type() {
	case ldvalue.StringType:
		s := v.StringValue()
		return s != "" && errorWordsRegex.MatchString(s)
	case ldvalue.ObjectType:
		keys := v.Keys()
		for _, k := range keys {
			for _, errKey := range errorFieldKeys {
				if k == errKey {
					return true
				}
			}
		}
		var joined []string
		for _, k := range keys {
			field := v.GetByKey(k)
			if field.Type() == ldvalue.StringType {
				joined = append(joined, field.StringValue())
			} else {
				joined = append(joined, field.JSONString())
			}
		}
		return errorWordsRegex.MatchString(strings.Join(joined, " "))
	default:
		return false
	}
}

// EntriesEmpty reports whether a body carries no data entries. An array must be empty; an object
// must have an empty "data" or "items" array if it has either; any other body carries no entries.
func EntriesEmpty(bodyText string) bool {
	v := Parse(bodyText)
	switch v.Type() {
	case ldvalue.ArrayType:
		return v.Count() == 0
	case ldvalue.ObjectType:
		for _, key := range []string{"data", "items"} {
			if field := v.GetByKey(key); field.Type() == ldvalue.ArrayType {
				return field.Count() == 0
			}
		}
	}
	return true
}
