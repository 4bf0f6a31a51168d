package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"copilot-orchestrator/internal/domain"
)

// maxSearchTerms caps how many question words turn into ILIKE conditions, so
// a long keyword query cannot explode the statement.
const maxSearchTerms = 8

type recordStore struct {
	pool *pgxpool.Pool
}

// NewRecordStore creates the pgx-backed reader for the structured side of the
// workspace: databases, their field schemas, and their records.
func NewRecordStore(pool *pgxpool.Pool) domain.RecordStore {
	return &recordStore{pool: pool}
}

func (r *recordStore) ListDatabases(ctx context.Context) ([]domain.DatabaseDescriptor, error) {
	exec := executor(ctx, r.pool)

	rows, err := exec.Query(ctx, `SELECT id, name FROM workspace_databases ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	var out []domain.DatabaseDescriptor
	index := make(map[string]int)
	for rows.Next() {
		var d domain.DatabaseDescriptor
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("failed to scan database: %w", err)
		}
		index[d.ID] = len(out)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}

	if err := r.loadFields(ctx, out, index); err != nil {
		return nil, err
	}
	if err := r.loadSampleValues(ctx, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recordStore) loadFields(ctx context.Context, dbs []domain.DatabaseDescriptor, index map[string]int) error {
	query := `
		SELECT database_id, id, name, type
		FROM workspace_fields
		ORDER BY database_id ASC, name ASC
	`
	rows, err := executor(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var databaseID string
		var f domain.DatabaseField
		if err := rows.Scan(&databaseID, &f.ID, &f.Name, &f.Type); err != nil {
			return fmt.Errorf("failed to scan field: %w", err)
		}
		if i, ok := index[databaseID]; ok {
			dbs[i].Fields = append(dbs[i].Fields, f)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

// loadSampleValues attaches up to three distinct cell values per field, so
// the filter planner can see actual vocabulary (status names, owner names).
func (r *recordStore) loadSampleValues(ctx context.Context, dbs []domain.DatabaseDescriptor, index map[string]int) error {
	query := `
		SELECT f.database_id, v.field_id, (array_agg(DISTINCT v.value))[1:3]
		FROM workspace_record_values v
		JOIN workspace_fields f ON f.id = v.field_id
		WHERE v.value <> ''
		GROUP BY f.database_id, v.field_id
	`
	rows, err := executor(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to load sample values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var databaseID, fieldID string
		var samples []string
		if err := rows.Scan(&databaseID, &fieldID, &samples); err != nil {
			return fmt.Errorf("failed to scan sample values: %w", err)
		}
		i, ok := index[databaseID]
		if !ok {
			continue
		}
		if dbs[i].SampleValues == nil {
			dbs[i].SampleValues = make(map[string][]string)
		}
		dbs[i].SampleValues[fieldID] = samples
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func (r *recordStore) SearchRecords(ctx context.Context, query string, plan domain.DatabaseFilterPlan, limit int) ([]domain.WorkspaceRecord, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// A record matches when any term appears in its title or in any cell
	// value. Records matching more terms rank first.
	termConds := make([]string, 0, len(terms))
	for _, t := range terms {
		p := arg("%" + escapeLike(t) + "%")
		termConds = append(termConds, fmt.Sprintf(
			"(rec.title ILIKE %s OR EXISTS (SELECT 1 FROM workspace_record_values v WHERE v.record_id = rec.id AND v.value ILIKE %s))",
			p, p,
		))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT rec.id, rec.database_id, rec.title FROM workspace_records rec WHERE (`)
	sb.WriteString(strings.Join(termConds, " OR "))
	sb.WriteString(")")

	if !plan.IsEmpty() {
		sb.WriteString(" AND rec.database_id = ANY(")
		sb.WriteString(arg(plan.DatabaseIDs))
		sb.WriteString(")")
		appendFilterConds(&sb, arg, plan)
	}

	sb.WriteString(" ORDER BY (")
	for i, cond := range termConds {
		if i > 0 {
			sb.WriteString(" + ")
		}
		sb.WriteString("(" + cond + ")::int")
	}
	sb.WriteString(") DESC, rec.title ASC LIMIT ")
	sb.WriteString(arg(limit))

	rows, err := executor(ctx, r.pool).Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	defer rows.Close()

	var records []domain.WorkspaceRecord
	ids := make([]string, 0, limit)
	for rows.Next() {
		var rec domain.WorkspaceRecord
		if err := rows.Scan(&rec.ID, &rec.DatabaseID, &rec.Title); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
		ids = append(ids, rec.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	if err := r.hydrateValues(ctx, records, ids); err != nil {
		return nil, err
	}
	return records, nil
}

// appendFilterConds narrows per-database: a record in a filtered database
// must satisfy every filter of that database, while records of other planned
// databases pass untouched.
func appendFilterConds(sb *strings.Builder, arg func(interface{}) string, plan domain.DatabaseFilterPlan) {
	databaseIDs := make([]string, 0, len(plan.FieldFilters))
	for id := range plan.FieldFilters {
		databaseIDs = append(databaseIDs, id)
	}
	sort.Strings(databaseIDs)

	for _, databaseID := range databaseIDs {
		for _, f := range plan.FieldFilters[databaseID] {
			var valueCond string
			switch f.Operator {
			case domain.FilterEquals:
				valueCond = fmt.Sprintf("lower(v.value) = lower(%s)", arg(f.Value))
			case domain.FilterContains:
				valueCond = fmt.Sprintf("v.value ILIKE %s", arg("%"+escapeLike(f.Value)+"%"))
			default:
				continue
			}
			fmt.Fprintf(sb,
				" AND (rec.database_id <> %s OR EXISTS (SELECT 1 FROM workspace_record_values v WHERE v.record_id = rec.id AND v.field_id = %s AND %s))",
				arg(databaseID), arg(f.FieldID), valueCond,
			)
		}
	}
}

func (r *recordStore) hydrateValues(ctx context.Context, records []domain.WorkspaceRecord, ids []string) error {
	query := `
		SELECT v.record_id, f.name, v.value
		FROM workspace_record_values v
		JOIN workspace_fields f ON f.id = v.field_id
		WHERE v.record_id = ANY($1)
	`
	rows, err := executor(ctx, r.pool).Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load record values: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int, len(records))
	for i, rec := range records {
		index[rec.ID] = i
	}

	for rows.Next() {
		var recordID, fieldName, value string
		if err := rows.Scan(&recordID, &fieldName, &value); err != nil {
			return fmt.Errorf("failed to scan record value: %w", err)
		}
		i, ok := index[recordID]
		if !ok {
			continue
		}
		if records[i].Fields == nil {
			records[i].Fields = make(map[string]string)
		}
		records[i].Fields[fieldName] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func searchTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
		if len(terms) == maxSearchTerms {
			break
		}
	}
	return terms
}

// escapeLike neutralizes LIKE wildcards in user-derived text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
