package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteValidationError(w, err.Error())
		return false
	}
	return true
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	vars := mux.Vars(r)
	str := vars[key]
	if str == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return str, nil
}

// ParseQueryString extracts a string query parameter with a default
func ParseQueryString(r *http.Request, key, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// ParseQueryInt extracts and parses an integer query parameter with a default
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// Truthy reports whether a query parameter value counts as true. Only the
// literal values "1" and "true" are true; anything else is false.
func Truthy(val string) bool {
	return val == "1" || val == "true"
}

// BracketParams collects query parameters of the form family[key]=value into
// a map keyed by the bracketed name. Repeated keys (family[key][]=v) collect
// every value.
func BracketParams(r *http.Request, family string) map[string][]string {
	return BracketValues(r.URL.Query(), family)
}

// BracketValues is BracketParams over already-parsed query values.
func BracketValues(query url.Values, family string) map[string][]string {
	out := make(map[string][]string)
	prefix := family + "["
	for rawKey, values := range query {
		if !strings.HasPrefix(rawKey, prefix) {
			continue
		}
		inner := strings.TrimPrefix(rawKey, prefix)
		inner = strings.TrimSuffix(inner, "[]")
		inner = strings.TrimSuffix(inner, "]")
		out[inner] = append(out[inner], values...)
	}
	return out
}
