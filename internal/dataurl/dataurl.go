// Package dataurl parses the recording:// intra-system URL scheme that
// identifies an entity-path-or-component selection inside a recording
// (§6), grounded on how the original viewer's open_url parsing splits a
// path-like selector into an entity path plus an optional trailing
// component name.
package dataurl

import (
	"fmt"
	"strings"

	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
)

// Scheme is the URL scheme this package parses.
const Scheme = "recording"

// DataPath is a parsed recording:// selector: an entity path, plus an
// optional component name when the selector names a single column of
// that entity (an "entity-path-or-component-path").
type DataPath struct {
	Entity    entitypath.EntityPath
	Component component.Name // empty if the path names only an entity
}

// String renders p back into a recording:// URL. EntityPath.String already
// renders a leading "/" (its canonical absolute form), so it is stripped
// here to avoid a doubled slash after the "//" scheme separator.
func (p DataPath) String() string {
	u := Scheme + "://" + strings.TrimPrefix(p.Entity.String(), "/")
	if p.Component != "" {
		u += ":" + string(p.Component)
	}
	return u
}

// Parse parses a recording:// URL into a DataPath. The remainder after the
// scheme is consumed as a data path: an entity path, optionally followed
// by ":componentName" naming a single component column of that entity.
func Parse(raw string) (DataPath, error) {
	prefix := Scheme + "://"
	if !strings.HasPrefix(raw, prefix) {
		return DataPath{}, fmt.Errorf("dataurl: missing %q scheme in %q", prefix, raw)
	}
	rest := strings.TrimPrefix(raw, prefix)

	entityPart := rest
	var comp component.Name
	if idx := strings.LastIndex(rest, ":"); idx >= 0 {
		entityPart = rest[:idx]
		comp = component.Name(rest[idx+1:])
	}

	entity := entitypath.Parse(entityPart)
	return DataPath{Entity: entity, Component: comp}, nil
}
