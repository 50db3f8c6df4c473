package entities

// KeyRole marks the role a column plays in its table's keys
type KeyRole string

const (
	// KeyRolePrimary marks a primary key column ("PRI" as reported by DESCRIBE)
	KeyRolePrimary KeyRole = "PRI"
	// KeyRoleNone marks a column that is not part of the primary key
	KeyRoleNone KeyRole = ""
)

// FieldMeta describes one column of an entity's backing table
// Example: {Name: "id", Type: "bigint", KeyRole: "PRI"}
type FieldMeta struct {
	Name    string  `json:"name" msgpack:"name" yaml:"name"`                       // Column name
	Type    string  `json:"type" msgpack:"type" yaml:"type"`                       // Database type as reported by introspection
	KeyRole KeyRole `json:"key_role,omitempty" msgpack:"key_role" yaml:"key_role"` // Key role (PRI or empty)
}

// IsPrimary reports whether the field is (part of) the primary key
func (f *FieldMeta) IsPrimary() bool {
	return f.KeyRole == KeyRolePrimary
}
