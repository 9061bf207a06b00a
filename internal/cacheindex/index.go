package cacheindex

import "github.com/dreamware/graphdb/internal/model"

// indexLocked feeds n into the type/equality/range/compound indexes per
// the parsed spec. Callers must hold s.mu.
func (s *Store) indexLocked(n *model.Node) {
	s.addToTypeIndexLocked(n.Type, n.ID)

	for _, path := range s.spec.equality[n.Type] {
		v, ok := n.Properties.Lookup(path)
		if !ok {
			continue
		}
		s.addEqualityLocked(n.Type, path, v, n.ID)
	}

	for _, path := range s.spec.rnge[n.Type] {
		v, ok := n.Properties.Lookup(path)
		if !ok {
			continue
		}
		s.addRangeLocked(n.Type, path, v, n.ID)
	}

	for _, group := range s.spec.compound[n.Type] {
		values, ok := lookupAll(n.Properties, group)
		if !ok {
			continue
		}
		s.addCompoundLocked(n.Type, group, values, n.ID)
	}
}

// deindexLocked removes n from every index it may have been entered
// into. Called before re-indexing an updated node and on delete.
func (s *Store) deindexLocked(n *model.Node) {
	s.removeFromTypeIndexLocked(n.Type, n.ID)

	for _, path := range s.spec.equality[n.Type] {
		v, ok := n.Properties.Lookup(path)
		if !ok {
			continue
		}
		s.removeEqualityLocked(n.Type, path, v, n.ID)
	}

	for _, path := range s.spec.rnge[n.Type] {
		v, ok := n.Properties.Lookup(path)
		if !ok {
			continue
		}
		s.removeRangeLocked(n.Type, path, v, n.ID)
	}

	for _, group := range s.spec.compound[n.Type] {
		values, ok := lookupAll(n.Properties, group)
		if !ok {
			continue
		}
		s.removeCompoundLocked(n.Type, group, values, n.ID)
	}
}

func lookupAll(props model.Properties, paths [][]string) ([]any, bool) {
	values := make([]any, len(paths))
	for i, path := range paths {
		v, ok := props.Lookup(path)
		if !ok {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func (s *Store) addToTypeIndexLocked(typ, id string) {
	set, ok := s.byType[typ]
	if !ok {
		set = make(map[string]struct{})
		s.byType[typ] = set
	}
	set[id] = struct{}{}
}

func (s *Store) removeFromTypeIndexLocked(typ, id string) {
	if set, ok := s.byType[typ]; ok {
		delete(set, id)
	}
}

func (s *Store) addEqualityLocked(typ string, path []string, v any, id string) {
	byPath, ok := s.equality[typ]
	if !ok {
		byPath = make(map[string]map[string]map[string]struct{})
		s.equality[typ] = byPath
	}
	key := joinSegs(path)
	byValue, ok := byPath[key]
	if !ok {
		byValue = make(map[string]map[string]struct{})
		byPath[key] = byValue
	}
	set, ok := byValue[equalityKey(v)]
	if !ok {
		set = make(map[string]struct{})
		byValue[equalityKey(v)] = set
	}
	set[id] = struct{}{}
}

func (s *Store) removeEqualityLocked(typ string, path []string, v any, id string) {
	byPath, ok := s.equality[typ]
	if !ok {
		return
	}
	byValue, ok := byPath[joinSegs(path)]
	if !ok {
		return
	}
	if set, ok := byValue[equalityKey(v)]; ok {
		delete(set, id)
	}
}

func (s *Store) addRangeLocked(typ string, path []string, v any, id string) {
	byPath, ok := s.rnge[typ]
	if !ok {
		byPath = make(map[string]*rangeList)
		s.rnge[typ] = byPath
	}
	key := joinSegs(path)
	rl, ok := byPath[key]
	if !ok {
		rl = &rangeList{}
		byPath[key] = rl
	}
	rl.insert(newOrdinal(v), id)
}

func (s *Store) removeRangeLocked(typ string, path []string, v any, id string) {
	byPath, ok := s.rnge[typ]
	if !ok {
		return
	}
	if rl, ok := byPath[joinSegs(path)]; ok {
		rl.remove(newOrdinal(v), id)
	}
}

func (s *Store) addCompoundLocked(typ string, group [][]string, values []any, id string) {
	byGroup, ok := s.compound[typ]
	if !ok {
		byGroup = make(map[string]map[string]map[string]struct{})
		s.compound[typ] = byGroup
	}
	key := joinGroup(group)
	byTuple, ok := byGroup[key]
	if !ok {
		byTuple = make(map[string]map[string]struct{})
		byGroup[key] = byTuple
	}
	set, ok := byTuple[compoundTupleKey(values)]
	if !ok {
		set = make(map[string]struct{})
		byTuple[compoundTupleKey(values)] = set
	}
	set[id] = struct{}{}
}

func (s *Store) removeCompoundLocked(typ string, group [][]string, values []any, id string) {
	byGroup, ok := s.compound[typ]
	if !ok {
		return
	}
	byTuple, ok := byGroup[joinGroup(group)]
	if !ok {
		return
	}
	if set, ok := byTuple[compoundTupleKey(values)]; ok {
		delete(set, id)
	}
}
