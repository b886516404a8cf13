package chain

// ExtraKind declares which Go type an extra-metadata key accepts.
type ExtraKind int

const (
	// ExtraInt accepts int values.
	ExtraInt ExtraKind = iota
	// ExtraBool accepts bool values.
	ExtraBool
	// ExtraString accepts string values.
	ExtraString
	// ExtraAny accepts any value.
	ExtraAny
)

// String returns the string representation of the extra kind.
func (k ExtraKind) String() string {
	switch k {
	case ExtraInt:
		return "int"
	case ExtraBool:
		return "bool"
	case ExtraString:
		return "string"
	case ExtraAny:
		return "any"
	default:
		return "unknown"
	}
}

// ExtraKey is a declared metadata slot with a fixed value type. Only the
// keys declared below are writable; SetExtra rejects everything else.
type ExtraKey struct {
	Name string
	Kind ExtraKind
}

// The fixed extra-metadata vocabulary.
var (
	// ExtraIgnore flags a message the chain should process as a no-op.
	ExtraIgnore = ExtraKey{Name: "ignore", Kind: ExtraBool}
	// ExtraModifyType records which modifier kind produced a change.
	ExtraModifyType = ExtraKey{Name: "modify_type", Kind: ExtraString}
	// ExtraModifyValue records the value a modifier produced.
	ExtraModifyValue = ExtraKey{Name: "modify_value", Kind: ExtraAny}
	// ExtraRawValue records the value before a modifier ran.
	ExtraRawValue = ExtraKey{Name: "raw_value", Kind: ExtraAny}

	// ExtraRawDamage is the damage before crit and dodge resolution.
	ExtraRawDamage = ExtraKey{Name: "raw_damage", Kind: ExtraInt}
	// ExtraAfterCritDamage is the damage after the crit multiplier.
	ExtraAfterCritDamage = ExtraKey{Name: "after_crit_damage", Kind: ExtraInt}
	// ExtraCrit marks a critical hit.
	ExtraCrit = ExtraKey{Name: "crit", Kind: ExtraBool}
	// ExtraDodge marks a dodged hit.
	ExtraDodge = ExtraKey{Name: "dodge", Kind: ExtraBool}
	// ExtraDamageType labels the damage flavor (e.g. "reflect").
	ExtraDamageType = ExtraKey{Name: "damage_type", Kind: ExtraString}
)

var declaredExtras = map[ExtraKey]struct{}{
	ExtraIgnore:          {},
	ExtraModifyType:      {},
	ExtraModifyValue:     {},
	ExtraRawValue:        {},
	ExtraRawDamage:       {},
	ExtraAfterCritDamage: {},
	ExtraCrit:            {},
	ExtraDodge:           {},
	ExtraDamageType:      {},
}

func (k ExtraKey) known() bool {
	_, ok := declaredExtras[k]
	return ok
}

// check validates a value against the key's declared kind.
func (k ExtraKey) check(v any) error {
	switch k.Kind {
	case ExtraInt:
		if _, ok := v.(int); !ok {
			return &ExtraTypeMismatchError{Key: k, Value: v}
		}
	case ExtraBool:
		if _, ok := v.(bool); !ok {
			return &ExtraTypeMismatchError{Key: k, Value: v}
		}
	case ExtraString:
		if _, ok := v.(string); !ok {
			return &ExtraTypeMismatchError{Key: k, Value: v}
		}
	case ExtraAny:
	}
	return nil
}
