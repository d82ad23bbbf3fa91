package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// MemoryDatabase is an in-process Database used in mock mode and in tests.
// It stores plain bson.M documents and evaluates the filter operators this
// layer actually issues: equality, $in, $gte, $lte, $gt, $lt and $exists,
// plus dotted field paths into sub-documents.
type MemoryDatabase struct {
	mu    sync.RWMutex
	colls map[string][]bson.M
}

// NewMemoryDatabase creates an empty in-memory database
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{colls: make(map[string][]bson.M)}
}

// Seed appends documents to the named collection
func (d *MemoryDatabase) Seed(collection string, docs ...bson.M) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.colls[collection] = append(d.colls[collection], docs...)
}

// Drop removes the named collection
func (d *MemoryDatabase) Drop(collection string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.colls, collection)
}

func (d *MemoryDatabase) Collection(name string) Collection {
	return &memoryCollection{db: d, name: name}
}

type memoryCollection struct {
	db   *MemoryDatabase
	name string
}

func (c *memoryCollection) matching(filter bson.M) []bson.M {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	var out []bson.M
	for _, doc := range c.db.colls[c.name] {
		if matchFilter(doc, filter) {
			out = append(out, doc)
		}
	}
	return out
}

func (c *memoryCollection) FindOne(ctx context.Context, filter bson.M, opts FindOptions, out interface{}) error {
	docs := c.matching(filter)
	if len(opts.Sort) > 0 {
		sortDocs(docs, opts.Sort)
	}
	if len(docs) == 0 {
		return ErrNotFound
	}
	return decodeDoc(docs[0], out)
}

func (c *memoryCollection) Find(ctx context.Context, filter bson.M, opts FindOptions, out interface{}) error {
	docs := c.matching(filter)
	if len(opts.Sort) > 0 {
		sortDocs(docs, opts.Sort)
	}
	if opts.Limit > 0 && int64(len(docs)) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return decodeDocs(docs, out)
}

func (c *memoryCollection) Distinct(ctx context.Context, field string, filter bson.M) ([]string, error) {
	seen := make(map[string]struct{})
	for _, doc := range c.matching(filter) {
		if v, ok := lookupPath(doc, field); ok {
			if s, ok := v.(string); ok {
				seen[s] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// decodeDoc round-trips one document through bson into out
func decodeDoc(doc bson.M, out interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

// decodeDocs decodes documents into out, a pointer to a slice
func decodeDocs(docs []bson.M, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("store: out must be a pointer to a slice, got %T", out)
	}

	sl := rv.Elem()
	sl.Set(reflect.MakeSlice(sl.Type(), 0, len(docs)))
	for _, doc := range docs {
		elem := reflect.New(sl.Type().Elem())
		if err := decodeDoc(doc, elem.Interface()); err != nil {
			return err
		}
		sl.Set(reflect.Append(sl, elem.Elem()))
	}
	return nil
}

// matchFilter reports whether doc satisfies every clause of filter
func matchFilter(doc bson.M, filter bson.M) bool {
	for key, cond := range filter {
		val, present := lookupPath(doc, key)
		ops, isOps := asOperatorMap(cond)
		if !isOps {
			if !present || compareValues(val, cond) != 0 {
				return false
			}
			continue
		}
		for op, arg := range ops {
			if !matchOperator(val, present, op, arg) {
				return false
			}
		}
	}
	return true
}

func matchOperator(val interface{}, present bool, op string, arg interface{}) bool {
	switch op {
	case "$exists":
		want, _ := arg.(bool)
		return want == present
	case "$in":
		if !present {
			return false
		}
		list := reflect.ValueOf(arg)
		if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < list.Len(); i++ {
			if compareValues(val, list.Index(i).Interface()) == 0 {
				return true
			}
		}
		return false
	case "$gte":
		return present && compareValues(val, arg) >= 0
	case "$lte":
		return present && compareValues(val, arg) <= 0
	case "$gt":
		return present && compareValues(val, arg) > 0
	case "$lt":
		return present && compareValues(val, arg) < 0
	default:
		// unsupported operator matches nothing
		return false
	}
}

// asOperatorMap reports whether cond is an operator document like
// {"$gte": ...} rather than a literal value to compare against.
func asOperatorMap(cond interface{}) (map[string]interface{}, bool) {
	var m map[string]interface{}
	switch c := cond.(type) {
	case bson.M:
		m = c
	case map[string]interface{}:
		m = c
	default:
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, len(m) > 0
}

// lookupPath resolves a possibly dotted field path into nested documents
func lookupPath(doc bson.M, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = doc
	for _, part := range parts {
		switch m := cur.(type) {
		case bson.M:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]interface{}:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// compareValues orders two document values. Strings compare
// lexicographically, numbers numerically; values of incomparable kinds
// fall back to ordering by type name then rendered value, keeping the
// comparator symmetric while still equating only deeply equal values.
func compareValues(a, b interface{}) int {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs)
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	if reflect.DeepEqual(a, b) {
		return 0
	}
	if c := strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b)); c != 0 {
		return c
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// sortDocs stably sorts docs by a multi-key sort spec. Documents missing
// a sort key order before present ones on ascending sorts and after them
// on descending sorts.
func sortDocs(docs []bson.M, spec bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range spec {
			dir := 1
			if d, ok := toFloat(key.Value); ok && d < 0 {
				dir = -1
			}
			av, aok := lookupPath(docs[i], key.Key)
			bv, bok := lookupPath(docs[j], key.Key)
			if !aok && !bok {
				continue
			}
			if !aok {
				return dir > 0
			}
			if !bok {
				return dir < 0
			}
			if c := compareValues(av, bv); c != 0 {
				return c*dir < 0
			}
		}
		return false
	})
}
