// Package servicedef describes the resources exposed by the map data backend.
package servicedef

import (
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// MapData is one entry of GET /api/MapDatas.
type MapData struct {
	ID        string  `json:"id"`
	PlotNo    string  `json:"plotNo"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Street    string  `json:"street"`
	Town      string  `json:"town"`
	PostCode  string  `json:"postCode"`
	Village   string  `json:"village"`
}

// ValidateGUIDParams is the request body of POST /api/ValidateGuid.
type ValidateGUIDParams struct {
	ID string `json:"id"`
}

type fieldRule struct {
	name     string
	jsonType ldvalue.ValueType
}

// MapDataFields are the fields every map data entry must have, with their JSON types.
var MapDataFields = []fieldRule{
	{"id", ldvalue.StringType},
	{"plotNo", ldvalue.StringType},
	{"longitude", ldvalue.NumberType},
	{"latitude", ldvalue.NumberType},
	{"street", ldvalue.StringType},
	{"town", ldvalue.StringType},
	{"postCode", ldvalue.StringType},
	{"village", ldvalue.StringType},
}

// FieldNames returns the names of the required map data fields.
func FieldNames() []string {
	names := make([]string, 0, len(MapDataFields))
	for _, f := range MapDataFields {
		names = append(names, f.name)
	}
	return names
}

// CheckMapDataShape returns one problem description for every required field that is missing or
// has the wrong JSON type, and for an id that is not a UUID. An empty result means the entry is
// well-formed.
func CheckMapDataShape(entry ldvalue.Value) []string {
	if entry.Type() != ldvalue.ObjectType {
		return []string{fmt.Sprintf("entry should be an object, got %s", entry.JSONString())}
	}
	var problems []string
	present := make(map[string]bool)
	for _, k := range entry.Keys() {
		present[k] = true
	}
	for _, f := range MapDataFields {
		if !present[f.name] {
			problems = append(problems, fmt.Sprintf("missing required field: %s", f.name))
			continue
		}
		v := entry.GetByKey(f.name)
		if v.Type() != f.jsonType {
			problems = append(problems, fmt.Sprintf("field %q should be a %s, got %s", f.name, f.jsonType, v.JSONString()))
		}
	}
	if id := entry.GetByKey("id"); id.Type() == ldvalue.StringType {
		if _, err := uuid.Parse(id.StringValue()); err != nil {
			problems = append(problems, fmt.Sprintf("field \"id\" is not a valid UUID string: %q", id.StringValue()))
		}
	}
	return problems
}
