package postgresbackend

import (
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
)

const (
	dialectPostgres = "postgres"
	colPath         = "path"
	colValue        = "value"
	colUpdatedAt    = "updated_at"
	cteRemoved      = "removed"
	castJsonb       = "?::jsonb"
	fnStartsWith    = "starts_with"
)

// subtreeCondition matches the row at path and all rows beneath it.
func subtreeCondition(path string) exp.Expression {
	if path == "" {
		return goqu.L("TRUE")
	}

	return goqu.Or(
		goqu.C(colPath).Eq(path),
		goqu.Func(fnStartsWith, goqu.C(colPath), path+pathSeparator),
	)
}

func (c *Client) buildSelectSubtreeQuery(path string) (string, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(c.tableName).
		Select(colPath, colValue).
		Where(subtreeCondition(path)).
		Order(goqu.C(colPath).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// buildSetQuery replaces the value at path with leaves in one statement.
// Rows beneath path and leaves stored at ancestors of path are removed, except for the rows that get upserted.
func (c *Client) buildSetQuery(path string, leaves []leaf) (string, error) {
	builder := goqu.Dialect(dialectPostgres)

	replaced := []exp.Expression{subtreeCondition(path)}
	if ancestors := ancestorPaths(path); len(ancestors) > 0 {
		replaced = append(replaced, goqu.C(colPath).In(ancestors))
	}

	removeCondition := goqu.Or(replaced...)

	if len(leaves) == 0 {
		return toSQL(builder.Delete(c.tableName).Where(removeCondition))
	}

	leafPaths := make([]string, 0, len(leaves))
	rows := make([][]any, 0, len(leaves))

	for _, l := range leaves {
		leafPaths = append(leafPaths, l.path)
		rows = append(rows, []any{l.path, goqu.L(castJsonb, l.json)})
	}

	deleteStmt := builder.
		Delete(c.tableName).
		Where(goqu.And(removeCondition, goqu.C(colPath).NotIn(leafPaths)))

	insertStmt := builder.
		Insert(c.tableName).
		With(cteRemoved, deleteStmt).
		Cols(colPath, colValue).
		Vals(rows...).
		OnConflict(goqu.DoUpdate(colPath, goqu.Record{
			colValue:     goqu.I("excluded." + colValue),
			colUpdatedAt: goqu.L("now()"),
		}))

	return toSQL(insertStmt)
}

func (c *Client) buildRemoveQuery(path string) (string, error) {
	return toSQL(goqu.Dialect(dialectPostgres).Delete(c.tableName).Where(subtreeCondition(path)))
}

type sqlRenderer interface {
	ToSQL() (string, []any, error)
}

func toSQL(stmt sqlRenderer) (string, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}
