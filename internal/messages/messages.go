// Package messages serves the player-facing texts of the event engine in the
// player's language, falling back to the base locale.
package messages

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	"eventengine.ai/internal/gameworld"
)

const BaseLocale = "en"

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Prefix   string            `yaml:"prefix"`
	Messages map[string]string `yaml:"messages"`
}

type Catalog struct {
	tags     []language.Tag
	prefixes []string
	printers []*message.Printer
	matcher  language.Matcher
}

// Load reads every <locale>.yaml in dir. The base locale is required.
func Load(dir string) (*Catalog, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("messages: no catalogs in %s", dir)
	}
	sort.Strings(paths)

	files := make([]localeFile, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var f localeFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if strings.TrimSpace(f.Locale) == "" {
			f.Locale = strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		}
		files = append(files, f)
	}
	return build(files)
}

// FromMap builds a catalog from in-memory locale tables.
func FromMap(prefix string, locales map[string]map[string]string) (*Catalog, error) {
	files := make([]localeFile, 0, len(locales))
	for loc, msgs := range locales {
		files = append(files, localeFile{Locale: loc, Prefix: prefix, Messages: msgs})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Locale < files[j].Locale })
	return build(files)
}

func build(files []localeFile) (*Catalog, error) {
	var base *localeFile
	for i := range files {
		if files[i].Locale == BaseLocale {
			base = &files[i]
		}
	}
	if base == nil {
		return nil, fmt.Errorf("messages: base locale %q is not defined", BaseLocale)
	}

	// Base locale first so the matcher falls back to it.
	ordered := []localeFile{*base}
	for _, f := range files {
		if f.Locale != BaseLocale {
			ordered = append(ordered, f)
		}
	}

	b := catalog.NewBuilder()
	c := &Catalog{}
	for _, f := range ordered {
		tag, err := language.Parse(f.Locale)
		if err != nil {
			return nil, fmt.Errorf("messages: locale %q: %w", f.Locale, err)
		}
		for key, text := range base.Messages {
			if _, ok := f.Messages[key]; ok {
				continue
			}
			if err := b.SetString(tag, key, text); err != nil {
				return nil, err
			}
		}
		for key, text := range f.Messages {
			if err := b.SetString(tag, key, text); err != nil {
				return nil, err
			}
		}
		prefix := f.Prefix
		if prefix == "" {
			prefix = base.Prefix
		}
		c.tags = append(c.tags, tag)
		c.prefixes = append(c.prefixes, prefix)
	}
	for _, tag := range c.tags {
		c.printers = append(c.printers, message.NewPrinter(tag, message.Catalog(b)))
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

func (c *Catalog) index(lang string) int {
	if strings.TrimSpace(lang) == "" {
		return 0
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return 0
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return 0
	}
	return idx
}

// Text returns the message for key in lang, formatted with args. Unknown keys
// come back unchanged.
func (c *Catalog) Text(lang, key string, args ...any) string {
	return c.printers[c.index(lang)].Sprintf(key, args...)
}

// Message returns the text for player's language. With useDefaultColor set
// the text carries the catalog prefix the client renders in the engine color.
func (c *Catalog) Message(player gameworld.Actor, key string, useDefaultColor bool, args ...any) string {
	i := c.index(player.Lang)
	text := c.printers[i].Sprintf(key, args...)
	if useDefaultColor {
		text = c.prefixes[i] + text
	}
	return text
}

// Locales lists the loaded locales, base first.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.tags))
	for _, t := range c.tags {
		out = append(out, t.String())
	}
	return out
}
