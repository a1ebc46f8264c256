// Package config reads harness configuration from a properties or YAML file
// with FLIGHTCHECK_* environment overrides, and resolves it once into Settings.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Configuration keys.
const (
	KeyAppURL       = "app.url"
	KeyTimeout      = "test.timeout"
	KeyMaxRetry     = "test.retry.maxcount"
	KeyBrowser      = "browser"
	KeyHeadless     = "browser.headless"
	KeyGridEnabled  = "selenium.grid.enabled"
	KeyHubHost      = "selenium.hubHost"
	KeyHubURLFormat = "seleniumhub.urlFormat"
	KeyParallel     = "test.parallel"
	KeySuite        = "test.suite"
	KeyReportsDir   = "reports.dir"
	KeyTester       = "tester.name"
	KeyCaseTimeout  = "test.case.timeout"
)

// EnvPrefix prefixes environment overrides: test.retry.maxcount is read
// from FLIGHTCHECK_TEST_RETRY_MAXCOUNT.
const EnvPrefix = "FLIGHTCHECK_"

// Source is a read-only key/value lookup.
type Source interface {
	GetString(key string) (string, bool)
	GetInt(key string) (int, bool)
	GetBool(key string) (bool, bool)
}

// MissingKeyError reports a required key that is absent or empty.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing required configuration %q", e.Key)
}

// Properties is a flat map Source. Nested YAML maps are flattened into
// dotted keys on load.
type Properties map[string]string

func (p Properties) GetString(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p Properties) GetInt(key string) (int, bool) {
	v, ok := p.GetString(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (p Properties) GetBool(key string) (bool, bool) {
	v, ok := p.GetString(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Keys returns the set keys in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadFromPath reads a config file. Format is detected by extension
// (.yaml/.yml → YAML, anything else → key=value properties).
func LoadFromPath(path string) (Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses config bytes; ext is a format hint.
func Load(data []byte, ext string) (Properties, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
		p := Properties{}
		flatten("", raw, p)
		return p, nil
	default:
		return parseProperties(data)
	}
}

func flatten(prefix string, m map[string]any, out Properties) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch vv := v.(type) {
		case map[string]any:
			flatten(key, vv, out)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(vv)
		}
	}
}

func parseProperties(data []byte) (Properties, error) {
	p := Properties{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "!") {
			continue
		}
		i := strings.IndexAny(s, "=:")
		if i < 0 {
			return nil, fmt.Errorf("parse config line %d: expected key=value", line)
		}
		p[strings.TrimSpace(s[:i])] = strings.TrimSpace(s[i+1:])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan config: %w", err)
	}
	return p, nil
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return EnvPrefix + strings.ToUpper(r.Replace(key))
}

// WithEnv returns a copy of p where every known key (and every key already
// in p) is overridden by its environment variable when set.
func WithEnv(p Properties, lookup func(string) (string, bool)) Properties {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := Properties{}
	for k, v := range p {
		out[k] = v
	}
	keys := append(p.Keys(), knownKeys...)
	for _, k := range keys {
		if v, ok := lookup(EnvName(k)); ok {
			out[k] = v
		}
	}
	return out
}

var knownKeys = []string{
	KeyAppURL, KeyTimeout, KeyMaxRetry, KeyBrowser, KeyHeadless,
	KeyGridEnabled, KeyHubHost, KeyHubURLFormat, KeyParallel, KeySuite,
	KeyReportsDir, KeyTester, KeyCaseTimeout,
}
