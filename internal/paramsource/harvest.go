package paramsource

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"api-contract-tester/internal/logger"
	"api-contract-tester/internal/types"
)

// Column identifies one column of a base table.
type Column struct {
	Table string
	Name  string
}

// catalogQueries list (table, column) pairs of every base table per driver.
var catalogQueries = map[string]string{
	"postgres": `
		SELECT LOWER(table_name), column_name
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`,
	"mysql": `
		SELECT LOWER(table_name), column_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		ORDER BY table_name, ordinal_position`,
	"sqlserver": `
		SELECT LOWER(TABLE_NAME), COLUMN_NAME
		FROM INFORMATION_SCHEMA.COLUMNS
		ORDER BY TABLE_NAME, ORDINAL_POSITION`,
	"sqlite3": `
		SELECT LOWER(m.name), p.name
		FROM sqlite_master AS m
		JOIN pragma_table_info(m.name) AS p
		WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
		ORDER BY m.name, p.cid`,
}

// Harvester proposes parameter values taken from rows that already exist in
// the database of the service under test. A parameter matches a column with
// the same name, ignoring case and separators, or the id column of the table
// it names ("petId" matches pets.id).
type Harvester struct {
	db     *sql.DB
	driver string
	logger *logger.Logger

	once    sync.Once
	columns []Column
	err     error
}

// NewHarvester creates a harvester reading from db, opened with driver.
func NewHarvester(db *sql.DB, driver string, log *logger.Logger) *Harvester {
	return &Harvester{db: db, driver: driver, logger: log}
}

// Columns lists the columns of every base table. The catalog is read once.
func (h *Harvester) Columns(ctx context.Context) ([]Column, error) {
	h.once.Do(func() {
		h.columns, h.err = h.readCatalog(ctx)
	})
	return h.columns, h.err
}

func (h *Harvester) readCatalog(ctx context.Context) ([]Column, error) {
	query, ok := catalogQueries[h.driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", h.driver)
	}
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read table columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		if err := rows.Scan(&col.Table, &col.Name); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// SuggestParams returns an existing value for every parameter that matches a
// column holding at least one non-null value.
func (h *Harvester) SuggestParams(ctx context.Context, op *types.Operation, params []types.Parameter) (map[string]any, error) {
	columns, err := h.Columns(ctx)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(params))
	for _, p := range params {
		for _, col := range candidates(p.Name, op.Path, columns) {
			v, err := h.sample(ctx, col)
			if err != nil {
				h.logger.Debugf("No value for %s from %s.%s: %v", p.Name, col.Table, col.Name, err)
				continue
			}
			values[p.Name] = v
			break
		}
	}
	h.logger.Debugf("Harvested %d of %d value(s) for %s", len(values), len(params), op.Key())
	return values, nil
}

func (h *Harvester) sample(ctx context.Context, col Column) (any, error) {
	var v any
	if err := h.db.QueryRowContext(ctx, h.sampleQuery(col)).Scan(&v); err != nil {
		return nil, err
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	return v, nil
}

// sampleQuery selects a single non-null value of col.
func (h *Harvester) sampleQuery(col Column) string {
	name, table := h.quote(col.Name), h.quote(col.Table)
	if h.driver == "sqlserver" {
		return fmt.Sprintf("SELECT TOP 1 %s FROM %s WHERE %s IS NOT NULL", name, table, name)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL LIMIT 1", name, table, name)
}

func (h *Harvester) quote(ident string) string {
	switch h.driver {
	case "mysql":
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	case "sqlserver":
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}

// candidates orders the columns that may hold values for param. Columns of
// tables named in the operation path come first.
func candidates(param, path string, columns []Column) []Column {
	name := normalize(param)
	entity, isID := strings.CutSuffix(name, "id")

	var matched []Column
	for _, col := range columns {
		colName := normalize(col.Name)
		switch {
		case colName == name:
		case isID && entity != "" && colName == "id" && namesEntity(col.Table, entity):
		default:
			continue
		}
		matched = append(matched, col)
	}

	segments := pathSegments(path)
	sort.SliceStable(matched, func(i, j int) bool {
		return segments[matched[i].Table] && !segments[matched[j].Table]
	})
	return matched
}

// namesEntity reports whether table is entity or one of its plurals.
func namesEntity(table, entity string) bool {
	table = normalize(table)
	return table == entity || table == entity+"s" || table == entity+"es" ||
		(strings.HasSuffix(entity, "y") && table == strings.TrimSuffix(entity, "y")+"ies")
}

func pathSegments(path string) map[string]bool {
	segments := map[string]bool{}
	for _, s := range strings.Split(path, "/") {
		if s != "" && !strings.HasPrefix(s, "{") {
			segments[strings.ToLower(s)] = true
		}
	}
	return segments
}

func normalize(name string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(name))
}
