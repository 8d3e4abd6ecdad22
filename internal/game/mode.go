package game

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

//go:embed modes.yaml
var defaultModes embed.FS

var ErrUnknownMode = errors.New("unknown game mode")

// Mode is one time-control preset from the catalog.
type Mode struct {
	ID          string
	Name        string
	TimePerSide time.Duration
}

// ModeCatalog holds the available time controls, loaded from the embedded
// defaults and optionally overridden by an operator-supplied file.
type ModeCatalog struct {
	order []string
	byID  map[string]Mode
}

type modeFile struct {
	Modes []struct {
		ID             string `yaml:"id"`
		Name           string `yaml:"name"`
		SecondsPerSide int    `yaml:"seconds_per_side"`
	} `yaml:"modes"`
}

// LoadModes reads the embedded catalog; overridePath, when non-empty,
// replaces it wholesale.
func LoadModes(overridePath string) (*ModeCatalog, error) {
	raw, err := fs.ReadFile(defaultModes, "modes.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded modes: %w", err)
	}
	if overridePath != "" {
		raw, err = os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("read mode override: %w", err)
		}
	}
	return parseModes(raw)
}

func parseModes(raw []byte) (*ModeCatalog, error) {
	var file modeFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse modes: %w", err)
	}
	if len(file.Modes) == 0 {
		return nil, errors.New("mode catalog is empty")
	}
	cat := &ModeCatalog{byID: make(map[string]Mode, len(file.Modes))}
	for _, m := range file.Modes {
		if m.ID == "" || m.SecondsPerSide <= 0 {
			return nil, fmt.Errorf("bad mode entry %q", m.ID)
		}
		if _, dup := cat.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate mode %q", m.ID)
		}
		cat.byID[m.ID] = Mode{
			ID:          m.ID,
			Name:        m.Name,
			TimePerSide: time.Duration(m.SecondsPerSide) * time.Second,
		}
		cat.order = append(cat.order, m.ID)
	}
	return cat, nil
}

// Get resolves a mode id; ErrUnknownMode for anything not in the catalog.
func (c *ModeCatalog) Get(id string) (Mode, error) {
	m, ok := c.byID[id]
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, id)
	}
	return m, nil
}

// IDs lists mode ids in catalog order.
func (c *ModeCatalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
