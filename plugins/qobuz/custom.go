package qobuz

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// CustomLibraries are user curated lists read from a folder of YAML files.
// Each file maps a list name to sublists, and each sublist to Qobuz URIs:
//
//	Test list:
//	  2010s Hip Hop:
//	    - qobuz:album:0060253743926
//
// Document order is preserved. A list defined in several files is merged.
type CustomLibraries struct {
	lists []customList
}

type customList struct {
	name     string
	sublists []customSublist
}

type customSublist struct {
	name string
	uris []string
}

// LoadCustomLibraries reads every .yml and .yaml file in dir, in file name order.
func LoadCustomLibraries(dir string) (*CustomLibraries, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read custom libraries: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yml" && ext != ".yaml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	libs := &CustomLibraries{}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if err := libs.parse(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return libs, nil
}

func (l *CustomLibraries) parse(data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of lists", root.Line)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		listName := strings.TrimSpace(root.Content[i].Value)
		body := root.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: list %q must map sublists to uris", body.Line, listName)
		}
		list := l.list(listName)
		for j := 0; j+1 < len(body.Content); j += 2 {
			var uris []string
			if err := body.Content[j+1].Decode(&uris); err != nil {
				return fmt.Errorf("line %d: %w", body.Content[j+1].Line, err)
			}
			list.add(strings.TrimSpace(body.Content[j].Value), uris)
		}
	}
	return nil
}

func (l *CustomLibraries) list(name string) *customList {
	for i := range l.lists {
		if l.lists[i].name == name {
			return &l.lists[i]
		}
	}
	l.lists = append(l.lists, customList{name: name})
	return &l.lists[len(l.lists)-1]
}

func (c *customList) add(name string, uris []string) {
	for i := range c.sublists {
		if c.sublists[i].name == name {
			c.sublists[i].uris = append(c.sublists[i].uris, uris...)
			return
		}
	}
	c.sublists = append(c.sublists, customSublist{name: name, uris: uris})
}

// Lists returns the list names.
func (l *CustomLibraries) Lists() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.lists))
	for _, list := range l.lists {
		out = append(out, list.name)
	}
	return out
}

// Sublists returns the sublist names of list.
func (l *CustomLibraries) Sublists(list string) ([]string, bool) {
	if l == nil {
		return nil, false
	}
	for _, cl := range l.lists {
		if cl.name != list {
			continue
		}
		out := make([]string, 0, len(cl.sublists))
		for _, sub := range cl.sublists {
			out = append(out, sub.name)
		}
		return out, true
	}
	return nil, false
}

// URIs returns the URIs of one sublist.
func (l *CustomLibraries) URIs(list, sublist string) ([]string, bool) {
	if l == nil {
		return nil, false
	}
	for _, cl := range l.lists {
		if cl.name != list {
			continue
		}
		for _, sub := range cl.sublists {
			if sub.name == sublist {
				return append([]string(nil), sub.uris...), true
			}
		}
	}
	return nil, false
}
