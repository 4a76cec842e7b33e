package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// fallbackFile is the local KEY=VALUE secrets file used when Secret Manager is out of reach:
//
//	secret://delivery_api_key=dev-key
//	sm://stripe_secret_key=sk_test_123
//
// Keys carry no query; values may contain '='. The file is read once, on first use, and a
// missing file is treated as empty.
type fallbackFile struct {
	path   string
	once   sync.Once
	values map[string]string
	err    error
}

func (f *fallbackFile) lookup(ref parsedReference, version string) (string, error) {
	f.once.Do(f.load)
	if f.err != nil {
		return "", f.err
	}
	if value, ok := f.values[cacheKey(ref.Canonical, version)]; ok {
		return value, nil
	}
	if value, ok := f.values[ref.Canonical]; ok {
		return value, nil
	}
	return "", fmt.Errorf("secrets: fallback value not found for %s", ref.Canonical)
}

func (f *fallbackFile) load() {
	f.values = map[string]string{}
	if f.path == "" {
		return
	}
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		f.err = fmt.Errorf("secrets: unable to open fallback file %s: %w", f.path, err)
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		parsed, err := parseReference(key)
		if err != nil {
			f.values[key] = value
			continue
		}
		f.values[parsed.Canonical] = value
		f.values[cacheKey(parsed.Canonical, "latest")] = value
	}
	if err := scanner.Err(); err != nil {
		f.err = fmt.Errorf("secrets: failed reading %s: %w", f.path, err)
	}
}
