package registry

import (
	"sort"

	"github.com/asakaida/modelchain/internal/entities"
)

// AliasIndex maps each related entity type to the aliases desc declares for it.
// Alias lists are sorted.
func AliasIndex(desc *entities.EntityDescriptor) map[string][]string {
	index := make(map[string][]string)
	for _, rel := range desc.AllRelations() {
		index[rel.Spec.TargetEntity] = append(index[rel.Spec.TargetEntity], rel.Alias)
	}
	for target := range index {
		sort.Strings(index[target])
	}
	return index
}

// FindAlias looks up the related entity type behind an alias of desc.
// With no argument it returns the whole AliasIndex; with one it returns the
// single matching entry, or an empty map when no relation uses that alias.
// More than one argument fails with a BadArgumentCountError.
func FindAlias(desc *entities.EntityDescriptor, aliases ...string) (map[string][]string, error) {
	if len(aliases) > 1 {
		return nil, &entities.BadArgumentCountError{
			Op:       desc.Name + ".FindAlias",
			Expected: "at most 1",
			Got:      len(aliases),
		}
	}

	index := AliasIndex(desc)
	if len(aliases) == 0 {
		return index, nil
	}

	targets := make([]string, 0, len(index))
	for target := range index {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		for _, alias := range index[target] {
			if alias == aliases[0] {
				return map[string][]string{target: index[target]}, nil
			}
		}
	}
	return map[string][]string{}, nil
}
