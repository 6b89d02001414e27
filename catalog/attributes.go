// Package catalog wraps the product side of the Varinode API: product
// lookup by URL, attribute schemas with dependency resolution, and per-site
// checkout metadata.
package catalog

import (
	"sort"

	"varinode/pkg/errs"
)

// Attribute is one required product attribute: the set of legal values and
// an optional default.
type Attribute struct {
	Values       map[string]interface{}
	DefaultValue string
}

// Schema maps attribute names to their definitions.
type Schema map[string]Attribute

// Dependencies is the attribute dependency graph:
// attribute -> value -> dependent attribute -> allowed dependent value ->
// pricing info ({price, orig_price}). The graph is directional; there is no
// reverse lookup from a dependent attribute back to its sources.
type Dependencies map[string]map[string]map[string]map[string]interface{}

// Resolution is the outcome of a selection: the merged selection set and
// any dependent attributes that had to be forced to stay legal.
type Resolution struct {
	Selections    map[string]string
	ForcedChanges map[string]string
}

// ResolveSelection validates a proposed attribute selection against the
// schema and cascades one-hop dependency constraints.
//
// Known attributes must be set to a value in their value set; unknown
// attributes pass through verbatim as extension fields. When a newly
// selected (attribute, value) pair makes an already-selected dependent
// attribute illegal, the dependent is forced to the first legal value in
// ascending key order. That pick is a policy choice, not a best-value
// guarantee.
func ResolveSelection(schema Schema, deps Dependencies, current, proposed map[string]string) (Resolution, error) {
	res := Resolution{
		Selections:    make(map[string]string, len(current)+len(proposed)),
		ForcedChanges: make(map[string]string),
	}
	for k, v := range current {
		res.Selections[k] = v
	}

	// Validate everything before applying anything; an illegal value fails
	// the whole call with no partial application.
	names := sortedKeys(proposed)
	for _, name := range names {
		value := proposed[name]
		attr, known := schema[name]
		if !known {
			continue
		}
		if _, legal := attr.Values[value]; !legal {
			return Resolution{}, errs.Newf(errs.InvalidSelection,
				"tried to select illegal attribute [%s: %s]", name, value)
		}
	}

	for _, name := range names {
		value := proposed[name]
		res.Selections[name] = value

		valueDeps, ok := deps[name][value]
		if !ok {
			continue
		}

		for _, dependent := range sortedKeys2(valueDeps) {
			// Only re-validate dependents that are being set in this call or
			// were already selected.
			depValue, selected := proposed[dependent]
			if !selected {
				depValue, selected = res.Selections[dependent]
			}
			if !selected {
				continue
			}

			allowed := valueDeps[dependent]
			if _, legal := allowed[depValue]; legal {
				continue
			}

			forced := firstKey(allowed)
			res.Selections[dependent] = forced
			res.ForcedChanges[dependent] = forced
		}
	}

	return res, nil
}

// Defaults returns the default selection for a schema: each attribute with
// a default_value set to it.
func (s Schema) Defaults() map[string]string {
	out := make(map[string]string)
	for name, attr := range s {
		if attr.DefaultValue != "" {
			out[name] = attr.DefaultValue
		}
	}
	return out
}

// ParseSchema converts a raw required_attributes block into a Schema.
func ParseSchema(raw map[string]interface{}) Schema {
	schema := make(Schema, len(raw))
	for name, v := range raw {
		block, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		attr := Attribute{}
		if values, ok := block["values"].(map[string]interface{}); ok {
			attr.Values = values
		}
		attr.DefaultValue, _ = block["default_value"].(string)
		schema[name] = attr
	}
	return schema
}

// ParseDependencies converts a raw attribute_dependencies block.
func ParseDependencies(raw map[string]interface{}) Dependencies {
	deps := make(Dependencies, len(raw))
	for attr, v := range raw {
		byValue, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		deps[attr] = make(map[string]map[string]map[string]interface{}, len(byValue))
		for value, dv := range byValue {
			byDependent, ok := dv.(map[string]interface{})
			if !ok {
				continue
			}
			deps[attr][value] = make(map[string]map[string]interface{}, len(byDependent))
			for dependent, av := range byDependent {
				allowed, ok := av.(map[string]interface{})
				if !ok {
					continue
				}
				deps[attr][value][dependent] = allowed
			}
		}
	}
	return deps
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys2(m map[string]map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstKey(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
