// Package convert turns build-configuration specifier strings into structured
// values. It is a standalone parsing facility with no coupling to the batch
// submission layer.
package convert

import (
	"fmt"
	"strconv"
	"strings"
)

// Separators, outermost first: top-level elements are split on ";",
// list items on ",", and key/value pairs on ":".
const (
	SepTop  = ";"
	SepList = ","
	SepKV   = ":"
)

// ListOfStrings splits a comma-separated specifier into its elements,
// trimming surrounding whitespace. Empty elements are dropped.
func ListOfStrings(txt string) []string {
	var out []string
	for _, item := range strings.Split(txt, SepList) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// DictOfStrings parses a ";"-separated sequence of "key:value" pairs.
func DictOfStrings(txt string) (map[string]string, error) {
	out := map[string]string{}
	for _, item := range strings.Split(txt, SepTop) {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		k, v, found := strings.Cut(item, SepKV)
		if !found {
			return nil, fmt.Errorf("convert: %q is not a key%svalue pair", item, SepKV)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

// Dependency is a parsed dependency specifier: a version constraint plus an
// optional toolchain version constraint.
type Dependency struct {
	VersOp          string
	ToolchainVersOp string
}

// ParseDependency parses "versop" or "versop;tc_versop".
func ParseDependency(txt string) (Dependency, error) {
	items := strings.Split(txt, SepTop)
	if len(items) < 1 || len(items) > 2 || strings.TrimSpace(items[0]) == "" {
		return Dependency{}, fmt.Errorf(
			"convert: dependency needs one element (versop) and at most two (tc_versop), got %q", txt)
	}
	dep := Dependency{VersOp: strings.TrimSpace(items[0])}
	if len(items) == 2 {
		dep.ToolchainVersOp = strings.TrimSpace(items[1])
	}
	return dep, nil
}

func (d Dependency) String() string {
	if d.ToolchainVersOp == "" {
		return d.VersOp
	}
	return d.VersOp + SepTop + d.ToolchainVersOp
}

// Patch is a parsed patch specifier: a filename with an optional strip level
// and destination.
type Patch struct {
	Filename string
	Level    int
	Dest     string
}

var patchKeys = map[string]bool{"level": true, "dest": true}

// ParsePatch parses "filename[;level:<int>][;dest:<path>]".
func ParsePatch(txt string) (Patch, error) {
	items := strings.Split(txt, SepTop)
	p := Patch{Filename: strings.TrimSpace(items[0])}
	if p.Filename == "" {
		return Patch{}, fmt.Errorf("convert: patch needs a filename, got %q", txt)
	}
	for _, item := range items[1:] {
		k, v, found := strings.Cut(item, SepKV)
		if !found {
			return Patch{}, fmt.Errorf("convert: patch option %q is not key%svalue", item, SepKV)
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !patchKeys[k] {
			return Patch{}, fmt.Errorf("convert: unknown patch option %q (allowed: level, dest)", k)
		}
		switch k {
		case "level":
			level, err := strconv.Atoi(v)
			if err != nil {
				return Patch{}, fmt.Errorf("convert: patch level %q is not an integer", v)
			}
			p.Level = level
		case "dest":
			p.Dest = v
		}
	}
	return p, nil
}
