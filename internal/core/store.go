package core

import (
	"context"
	"fmt"
)

// Table names the storage tables the import touches.
type Table string

const (
	TableCustomers                Table = "customers"
	TableContacts                 Table = "contacts"
	TableContactCustomerLinks     Table = "contact_customer_links"
	TableTeacherSchoolAssignments Table = "teacher_school_assignments"
)

// ImportTables lists every table a Store must support, in dependency order.
var ImportTables = []Table{
	TableCustomers,
	TableContacts,
	TableContactCustomerLinks,
	TableTeacherSchoolAssignments,
}

// Column names shared between the executor and the storage adapters.
const (
	ColID                  = "id"
	ColBcCustomerNumber    = "bc_customer_number"
	ColName                = "name"
	ColCustomerCategory    = "customer_category"
	ColCustomerTypeGroup   = "customer_type_group"
	ColVoyadoID            = "voyado_id"
	ColNorceCode           = "norce_code"
	ColSitooCustomerNumber = "sitoo_customer_number"
	ColIsActive            = "is_active"
	ColIsMunicipalityPayer = "is_municipality_payer"
	ColPayerID             = "payer_id"
	ColFirstName           = "first_name"
	ColLastName            = "last_name"
	ColEmail               = "email"
	ColPhone               = "phone"
	ColContactType         = "contact_type"
	ColIsTeacher           = "is_teacher"
	ColIsMerged            = "is_merged"
	ColContactID           = "contact_id"
	ColCustomerID          = "customer_id"
	ColRelationshipType    = "relationship_type"
	ColIsPrimary           = "is_primary"
	ColSchoolCustomerID    = "school_customer_id"
)

// Record is a row of a storage table keyed by column name.
type Record map[string]any

// ID returns the surrogate id of the record.
func (r Record) ID() string {
	return r.String(ColID)
}

// String returns a column as a string, or "" when unset.
func (r Record) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns a boolean column, false when unset.
func (r Record) Bool(col string) bool {
	b, _ := r[col].(bool)
	return b
}

// Clone returns a shallow copy that can be mutated freely.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Filter selects records whose columns equal the given values (AND).
// A nil value matches NULL.
type Filter map[string]any

// Store is the record storage the import reads and writes.
// Implementations must support every table in ImportTables.
type Store interface {
	// Find returns all records of table matching filter, in insertion order.
	Find(ctx context.Context, table Table, filter Filter) ([]Record, error)

	// Insert stores record and returns it with its generated id.
	Insert(ctx context.Context, table Table, record Record) (Record, error)

	// Update applies patch to the record with id and returns the updated record.
	Update(ctx context.Context, table Table, id string, patch Record) (Record, error)
}
