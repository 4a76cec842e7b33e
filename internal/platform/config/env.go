package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// envSource answers lookups in precedence order: explicit map, then OS env, then .env.
type envSource func(key string) (string, bool)

func newEnvSource(o loaderOptions) (envSource, error) {
	dotEnv, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if v, ok := o.envMap[key]; ok {
			return v, true
		}
		if o.useSystemEnv {
			if v, ok := os.LookupEnv(key); ok {
				return v, true
			}
		}
		v, ok := dotEnv[key]
		return v, ok
	}, nil
}

// EnvironmentValues returns the merged environment (dotenv < OS env < explicit map) so that
// main can build the secret fetcher before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	o := newLoaderOptions(opts)
	dotEnv, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(dotEnv)+len(o.envMap))
	for k, v := range dotEnv {
		values[k] = v
	}
	if o.useSystemEnv {
		for _, entry := range os.Environ() {
			if k, v, ok := strings.Cut(entry, "="); ok && strings.TrimSpace(k) != "" {
				values[strings.TrimSpace(k)] = v
			}
		}
	}
	for k, v := range o.envMap {
		values[k] = v
	}
	return values, nil
}

// str returns the trimmed value, or fallback when it is unset or blank.
func (env envSource) str(key, fallback string) string {
	if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// duration accepts Go duration strings ("90s") and bare integers, read as nanoseconds by cast.
func (env envSource) duration(key string, fallback time.Duration) time.Duration {
	if v, ok := env(key); ok && v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			return d
		}
	}
	return fallback
}

func (env envSource) integer(key string, fallback int) int {
	if v, ok := env(key); ok && v != "" {
		if n, err := cast.ToIntE(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func (env envSource) boolean(key string, fallback bool) bool {
	v, ok := env(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}

// keyValues parses "a=1, b=2"; keys are lower-cased, entries with an empty side are skipped.
func (env envSource) keyValues(key string) map[string]string {
	out := make(map[string]string)
	raw, _ := env(key)
	for _, entry := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(entry, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if ok && name != "" && value != "" {
			out[name] = value
		}
	}
	return out
}

// versionPins parses "ref=version" pairs. A ref may carry an "<env>:" prefix and may omit the
// secret:// scheme; the sm:// shorthand is normalised.
func (env envSource) versionPins(key string) map[string]string {
	pins := make(map[string]string)
	raw, _ := env(key)
	for _, entry := range strings.Split(raw, ",") {
		ref, version, ok := strings.Cut(entry, "=")
		ref = strings.TrimSpace(ref)
		version = strings.TrimSpace(version)
		if !ok || ref == "" || version == "" {
			continue
		}
		var prefix string
		if scope, rest, found := strings.Cut(ref, ":"); found && !strings.HasPrefix(rest, "//") {
			prefix = strings.ToLower(strings.TrimSpace(scope)) + ":"
			ref = strings.TrimSpace(rest)
		}
		ref = normalizeSecretReference(ref)
		if !strings.HasPrefix(ref, "secret://") {
			ref = "secret://" + ref
		}
		pins[prefix+ref] = version
	}
	return pins
}

// loadDotEnv reads KEY=VALUE lines; "export " prefixes and surrounding quotes are stripped.
// A missing file is not an error.
func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}
