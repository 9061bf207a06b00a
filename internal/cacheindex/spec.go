package cacheindex

import "github.com/dreamware/graphdb/internal/model"

// IndexSpec declares which property paths and compound combinations the
// Store tracks for each node type; unindexed queries fall through to a
// backend scan.
//
// Paths use the dotted selector syntax from model.SplitPath (e.g.
// "age", "address.city"); they are parsed once, at New time, into
// segment slices cached alongside the spec — never re-split per lookup.
type IndexSpec struct {
	// Equality lists, per type, the property paths to maintain an
	// equality index for.
	Equality map[string][]string

	// Range lists, per type, the property paths to maintain a sorted
	// range index for. A path may appear in both Equality and Range.
	Range map[string][]string

	// Compound lists, per type, the groups of property paths to
	// maintain a compound (tuple) index for. Each group is matched as a
	// unit — a query must supply equality predicates for every path in
	// the group to use it.
	Compound map[string][][]string
}

// parsedSpec is the segment-split form of an IndexSpec, computed once.
type parsedSpec struct {
	equality map[string][][]string
	rnge     map[string][][]string
	compound map[string][][][]string
}

func parseSpec(spec IndexSpec) parsedSpec {
	p := parsedSpec{
		equality: map[string][][]string{},
		rnge:     map[string][][]string{},
		compound: map[string][][][]string{},
	}
	for typ, paths := range spec.Equality {
		for _, path := range paths {
			p.equality[typ] = append(p.equality[typ], model.SplitPath(path))
		}
	}
	for typ, paths := range spec.Range {
		for _, path := range paths {
			p.rnge[typ] = append(p.rnge[typ], model.SplitPath(path))
		}
	}
	for typ, groups := range spec.Compound {
		for _, group := range groups {
			var segGroup [][]string
			for _, path := range group {
				segGroup = append(segGroup, model.SplitPath(path))
			}
			p.compound[typ] = append(p.compound[typ], segGroup)
		}
	}
	return p
}

func joinSegs(segs []string) string {
	out := segs[0]
	for _, s := range segs[1:] {
		out += "." + s
	}
	return out
}

func joinGroup(group [][]string) string {
	out := joinSegs(group[0])
	for _, segs := range group[1:] {
		out += "\x1f" + joinSegs(segs)
	}
	return out
}
