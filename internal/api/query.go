package api

import (
	"net/url"
	"strings"
)

// The backend filters collections with bracketed query parameters:
// filter[field][_eq]=value, with dots in the field path expanding to
// nested brackets (request.status -> filter[request][status][_eq]).

func setFilterEq(q url.Values, fieldPath, value string) {
	parts := strings.Split(fieldPath, ".")
	key := "filter"
	for _, p := range parts {
		key += "[" + p + "]"
	}
	q.Set(key+"[_eq]", value)
}

func setFields(q url.Values, fields ...string) {
	q.Set("fields", strings.Join(fields, ","))
}

func setSort(q url.Values, sort string) {
	q.Set("sort", sort)
}
