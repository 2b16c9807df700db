package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

func queryInt64(r *http.Request, name string) *int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// queryConfirmed parses the common `confirmed` tri-state query parameter:
// "true"/"false" filter, empty string or absent means no filter.
func queryConfirmed(r *http.Request) *bool {
	raw := r.URL.Query().Get("confirmed")
	switch raw {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}

// queryExpand parses the `expand=k1,k2,*` query parameter.
func queryExpand(r *http.Request) *ExpandSet {
	raw := r.URL.Query().Get("expand")
	if raw == "" {
		return &ExpandSet{}
	}
	if raw == "*" {
		return &ExpandSet{all: true}
	}
	fields := make(map[string]bool)
	for _, f := range strings.Split(raw, ",") {
		if f != "" {
			fields[f] = true
		}
	}
	return &ExpandSet{fields: fields}
}
