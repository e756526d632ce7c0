package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/customer-import/internal/core"
)

// tableDef whitelists the columns of one import table.
type tableDef struct {
	columns    []string
	hasUpdated bool
}

var tables = map[core.Table]tableDef{
	core.TableCustomers: {
		columns: []string{
			core.ColID, core.ColBcCustomerNumber, core.ColName, core.ColCustomerCategory,
			core.ColCustomerTypeGroup, core.ColVoyadoID, core.ColNorceCode,
			core.ColSitooCustomerNumber, core.ColIsActive, core.ColIsMunicipalityPayer,
			core.ColPayerID, "created_at", "updated_at",
		},
		hasUpdated: true,
	},
	core.TableContacts: {
		columns: []string{
			core.ColID, core.ColVoyadoID, core.ColFirstName, core.ColLastName, core.ColEmail,
			core.ColPhone, core.ColContactType, core.ColIsTeacher, core.ColIsActive,
			core.ColIsMerged, "created_at", "updated_at",
		},
		hasUpdated: true,
	},
	core.TableContactCustomerLinks: {
		columns: []string{
			core.ColID, core.ColContactID, core.ColCustomerID, core.ColRelationshipType,
			core.ColIsPrimary, "created_at",
		},
	},
	core.TableTeacherSchoolAssignments: {
		columns: []string{
			core.ColID, core.ColContactID, core.ColSchoolCustomerID, "created_at",
		},
	},
}

// ErrUnknownColumn is returned for a column outside a table's whitelist.
var ErrUnknownColumn = errors.New("unknown column")

func lookupTable(table core.Table) (tableDef, error) {
	def, ok := tables[table]
	if !ok {
		return tableDef{}, fmt.Errorf("%w: %s", core.ErrUnknownTable, table)
	}
	return def, nil
}

func (d tableDef) has(col string) bool {
	return slices.Contains(d.columns, col)
}

// writable reports whether col may be set by Insert or Update.
func (d tableDef) writable(col string) bool {
	return d.has(col) && col != "created_at" && col != "updated_at"
}

func (d tableDef) selectList() string {
	quoted := make([]string, len(d.columns))
	for i, c := range d.columns {
		quoted[i] = quoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

// sortedKeys returns map keys in a stable order so generated SQL is deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func buildSelect(table core.Table, filter core.Filter) (string, []any, error) {
	def, err := lookupTable(table)
	if err != nil {
		return "", nil, err
	}

	wb := NewWhereBuilder()
	for _, col := range sortedKeys(filter) {
		if !def.has(col) {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, col)
		}
		wb.Eq(col, filter[col])
	}
	where, args := wb.Build()

	query := "SELECT " + def.selectList() + " FROM " + quoteIdentifier(string(table)) +
		where + ` ORDER BY "created_at", "id"`
	return query, args, nil
}

func buildInsert(table core.Table, record core.Record) (string, []any, error) {
	def, err := lookupTable(table)
	if err != nil {
		return "", nil, err
	}

	var (
		cols         []string
		placeholders []string
		args         []any
	)
	for _, col := range sortedKeys(record) {
		if !def.writable(col) {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, col)
		}
		if col == core.ColID && record[col] == nil {
			continue
		}
		args = append(args, record[col])
		cols = append(cols, quoteIdentifier(col))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	target := quoteIdentifier(string(table))
	returning := " RETURNING " + def.selectList()
	if len(cols) == 0 {
		return "INSERT INTO " + target + " DEFAULT VALUES" + returning, nil, nil
	}
	query := "INSERT INTO " + target + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.Join(placeholders, ", ") + ")" + returning
	return query, args, nil
}

func buildUpdate(table core.Table, id string, patch core.Record) (string, []any, error) {
	def, err := lookupTable(table)
	if err != nil {
		return "", nil, err
	}

	var (
		sets []string
		args []any
	)
	for _, col := range sortedKeys(patch) {
		if col == core.ColID {
			continue
		}
		if !def.writable(col) {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, col)
		}
		args = append(args, patch[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(col), len(args)))
	}
	if def.hasUpdated {
		sets = append(sets, `"updated_at" = now()`)
	}

	target := quoteIdentifier(string(table))
	args = append(args, id)
	idArg := fmt.Sprintf("$%d", len(args))

	if len(sets) == 0 {
		query := "SELECT " + def.selectList() + " FROM " + target + ` WHERE "id" = ` + idArg
		return query, args, nil
	}
	query := "UPDATE " + target + " SET " + strings.Join(sets, ", ") +
		` WHERE "id" = ` + idArg + " RETURNING " + def.selectList()
	return query, args, nil
}

var _ core.Store = (*Store)(nil)

// Store is a core.Store backed by PostgreSQL.
type Store struct {
	db DBTX
}

// NewStore creates a Store over db.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// Find returns matching records ordered by creation time.
func (s *Store) Find(ctx context.Context, table core.Table, filter core.Filter) ([]core.Record, error) {
	query, args, err := buildSelect(table, filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}

	records := make([]core.Record, len(maps))
	for i, m := range maps {
		records[i] = toRecord(m)
	}
	return records, nil
}

// Insert stores record and returns the row as written, defaults included.
func (s *Store) Insert(ctx context.Context, table core.Table, record core.Record) (core.Record, error) {
	query, args, err := buildInsert(table, record)
	if err != nil {
		return nil, err
	}
	return s.one(ctx, table, query, args)
}

// Update applies patch to the row with id. A missing row yields
// core.ErrRecordNotFound.
func (s *Store) Update(ctx context.Context, table core.Table, id string, patch core.Record) (core.Record, error) {
	query, args, err := buildUpdate(table, id, patch)
	if err != nil {
		return nil, err
	}
	rec, err := s.one(ctx, table, query, args)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", core.ErrRecordNotFound, table, id)
	}
	return rec, err
}

func (s *Store) one(ctx context.Context, table core.Table, query string, args []any) (core.Record, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", table, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("write %s: %w", table, err)
	}
	return toRecord(m), nil
}
