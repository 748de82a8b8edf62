package riskmodel

import "maps"

const NotTrained = "Model not trained yet"

// tally counts class occurrences per key. Partial tallies built by the
// workers are merged before the model is fixed.
type tally struct {
	byKey   map[Key]map[string]int
	overall map[string]int
}

func newTally() *tally {
	return &tally{
		byKey:   make(map[Key]map[string]int),
		overall: make(map[string]int),
	}
}

func (t *tally) add(rows []Row) {
	for _, r := range rows {
		c, ok := t.byKey[r.Key]
		if !ok {
			c = make(map[string]int)
			t.byKey[r.Key] = c
		}
		c[r.Class]++
		t.overall[r.Class]++
	}
}

func (t *tally) merge(o *tally) {
	for k, oc := range o.byKey {
		c, ok := t.byKey[k]
		if !ok {
			t.byKey[k] = maps.Clone(oc)
			continue
		}
		for class, n := range oc {
			c[class] += n
		}
	}
	for class, n := range o.overall {
		t.overall[class] += n
	}
}

// Model maps every seen key to its majority class. Unseen keys get the
// majority class of the whole dataset.
type Model struct {
	classes  map[Key]string
	fallback string
	rows     int
}

func (t *tally) model() *Model {
	m := &Model{
		classes:  make(map[Key]string, len(t.byKey)),
		fallback: majority(t.overall),
	}
	for k, c := range t.byKey {
		m.classes[k] = majority(c)
	}
	for _, n := range t.overall {
		m.rows += n
	}
	return m
}

// majority breaks ties on the lexically smallest class so results do not
// depend on map order.
func majority(counts map[string]int) string {
	best, bestN := "", -1
	for class, n := range counts {
		if n > bestN || (n == bestN && class < best) {
			best, bestN = class, n
		}
	}
	return best
}

func (m *Model) Predict(k Key) string {
	if m == nil {
		return NotTrained
	}
	if c, ok := m.classes[k]; ok {
		return c
	}
	return m.fallback
}

// Rows is the number of rows the model was trained on.
func (m *Model) Rows() int {
	if m == nil {
		return 0
	}
	return m.rows
}

// Keys is the number of distinct feature tuples seen during training.
func (m *Model) Keys() int {
	if m == nil {
		return 0
	}
	return len(m.classes)
}
