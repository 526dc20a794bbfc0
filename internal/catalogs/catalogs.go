package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type EventCatalog struct {
	ByID   map[string]EventDef
	Digest string
}

type EventDef struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Enabled         bool            `json:"enabled"`
	MinParticipants int             `json:"min_participants,omitempty"`
	Params          json.RawMessage `json:"params,omitempty"`
}

// DecodeParams unmarshals the kind-specific params into v. Missing params
// leave v untouched.
func (d EventDef) DecodeParams(v any) error {
	if len(bytes.TrimSpace(d.Params)) == 0 {
		return nil
	}
	if err := json.Unmarshal(d.Params, v); err != nil {
		return fmt.Errorf("event %s params: %w", d.ID, err)
	}
	return nil
}

// Load reads every *.json under dir. A missing dir yields an empty catalog.
func Load(dir string) (*EventCatalog, error) {
	out := &EventCatalog{ByID: map[string]EventDef{}}

	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return out, nil
		}
		return nil, err
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		var ev EventDef
		if err := json.Unmarshal(b, &ev); err != nil {
			return nil, fmt.Errorf("event %s: %w", filepath.Base(p), err)
		}
		ev.ID = strings.TrimSpace(ev.ID)
		if ev.ID == "" {
			return nil, fmt.Errorf("event %s: missing id", filepath.Base(p))
		}
		if _, dup := out.ByID[ev.ID]; dup {
			return nil, fmt.Errorf("event %s: duplicate id %q", filepath.Base(p), ev.ID)
		}
		if ev.MinParticipants < 0 {
			return nil, fmt.Errorf("event %s: min_participants must be >= 0", filepath.Base(p))
		}
		out.ByID[ev.ID] = ev
	}
	out.Digest = sha256Hex(concat.Bytes())
	return out, nil
}

// EnabledKinds returns the ids of enabled events, sorted.
func (c *EventCatalog) EnabledKinds() []string {
	out := make([]string, 0, len(c.ByID))
	for id, ev := range c.ByID {
		if ev.Enabled {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (c *EventCatalog) Get(id string) (EventDef, bool) {
	ev, ok := c.ByID[id]
	return ev, ok
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
