package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// envReader collects parse problems instead of failing on the first one so
// validate can report everything at once.
type envReader struct {
	lookup   func(string) (string, bool)
	problems []string
}

func (r *envReader) str(key string) string {
	v, ok := r.lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func (r *envReader) int(key string) int {
	v := r.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.problems = append(r.problems, fmt.Sprintf("%s: invalid integer %q", key, v))
		return 0
	}
	return n
}

func (r *envReader) float(key string) (float64, bool) {
	v := r.str(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.problems = append(r.problems, fmt.Sprintf("%s: invalid number %q", key, v))
		return 0, false
	}
	return f, true
}

// duration accepts Go durations ("8s") or bare seconds ("8").
func (r *envReader) duration(key string) time.Duration {
	v := r.str(key)
	if v == "" {
		return 0
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	r.problems = append(r.problems, fmt.Sprintf("%s: invalid duration %q", key, v))
	return 0
}
