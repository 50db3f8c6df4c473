package entities

// Row is one fetched record: column name -> value, plus one key per
// declared relationship alias holding the nested rows
type Row map[string]interface{}

// ResultTree is the resolver output: entity type name -> rows
type ResultTree map[string][]Row

// Rows returns the rows stored for entityName (nil when absent)
func (t ResultTree) Rows(entityName string) []Row {
	return t[entityName]
}

// Nested returns the rows attached to r under alias
func (r Row) Nested(alias string) []Row {
	rows, _ := r[alias].([]Row)
	return rows
}
