package simulator

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/route"
)

// Override modes.
const (
	ModeError = "error"
	ModeEmpty = "empty"
)

// DefaultScenario is used when nothing selects a scenario. A missing file for
// it means no latency and no overrides.
const DefaultScenario = "happy"

// Scenario describes simulated latency and per-path fault injection.
type Scenario struct {
	Name string `yaml:"name"`

	// LatencyRangeMs is [min, max] in milliseconds. Empty means no latency.
	LatencyRangeMs []int64 `yaml:"latencyRangeMs,omitempty"`

	// Overrides maps a logical path pattern to an injected outcome. A pattern
	// ending in "*" matches by prefix.
	Overrides map[string]Override `yaml:"overrides,omitempty"`
}

// Override is the injected outcome for matching paths.
type Override struct {
	Mode    string `yaml:"mode"`
	Status  int    `yaml:"status,omitempty"`
	Code    string `yaml:"code,omitempty"`
	Message string `yaml:"message,omitempty"`
	Details any    `yaml:"details,omitempty"`
}

// Err returns the typed failure raised by an error override.
func (o Override) Err(p string) *envelope.Error {
	msg := o.Message
	if msg == "" {
		msg = fmt.Sprintf("injected %s for %s", o.Code, p)
	}
	return &envelope.Error{Status: o.Status, Code: o.Code, Message: msg, Details: o.Details}
}

// ParseScenario decodes a scenario document. JSON and YAML are both accepted;
// unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.normalize(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) normalize() error {
	switch len(sc.LatencyRangeMs) {
	case 0:
	case 2:
		if sc.LatencyRangeMs[0] < 0 || sc.LatencyRangeMs[1] < 0 {
			return fmt.Errorf("scenario %q: latencyRangeMs must not be negative", sc.Name)
		}
	default:
		return fmt.Errorf("scenario %q: latencyRangeMs must be [min, max]", sc.Name)
	}

	overrides := make(map[string]Override, len(sc.Overrides))
	for pattern, o := range sc.Overrides {
		switch o.Mode {
		case ModeEmpty:
		case ModeError:
			if o.Code == "" {
				return fmt.Errorf("scenario %q: error override %q needs a code", sc.Name, pattern)
			}
			if o.Status == 0 {
				o.Status = http.StatusInternalServerError
			}
		default:
			return fmt.Errorf("scenario %q: override %q has unknown mode %q", sc.Name, pattern, o.Mode)
		}
		overrides[route.Logical(pattern)] = o
	}
	sc.Overrides = overrides
	return nil
}

// Match finds the override for a logical path: an exact pattern wins, then the
// longest wildcard prefix.
func (sc *Scenario) Match(p string) (Override, bool) {
	if sc == nil {
		return Override{}, false
	}
	if o, ok := sc.Overrides[p]; ok && !strings.HasSuffix(p, "*") {
		return o, true
	}

	best, found := -1, Override{}
	for pattern, o := range sc.Overrides {
		prefix, ok := strings.CutSuffix(pattern, "*")
		if !ok || !strings.HasPrefix(p, prefix) {
			continue
		}
		if len(prefix) > best {
			best, found = len(prefix), o
		}
	}
	return found, best >= 0
}

var scenarioExts = []string{".json", ".yaml", ".yml"}

// loadScenario reads scenarios/<name>.{json,yaml,yml} from fsys.
func loadScenario(fsys fs.FS, name string) (*Scenario, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid scenario name %q", name)
	}
	for _, ext := range scenarioExts {
		data, err := fs.ReadFile(fsys, path.Join("scenarios", name+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read scenario %q: %w", name, err)
		}
		sc, err := ParseScenario(data)
		if err != nil {
			return nil, err
		}
		if sc.Name == "" {
			sc.Name = name
		}
		return sc, nil
	}
	return nil, fmt.Errorf("scenario %q: %w", name, fs.ErrNotExist)
}

// ScenarioNames lists the scenarios available in fsys.
func ScenarioNames(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, "scenarios")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := path.Ext(e.Name())
		for _, known := range scenarioExts {
			if ext == known {
				name := strings.TrimSuffix(e.Name(), ext)
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
	}
	return names, nil
}

// ScenarioFromQuery returns the scenario query parameter of a raw query string.
func ScenarioFromQuery(rawQuery string) string {
	v, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v.Get("scenario"))
}
