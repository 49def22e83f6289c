package postgresbackend

import (
	"fmt"

	"github.com/lib/pq"
)

// notifyChannel is the LISTEN channel the trigger of the table publishes to.
func notifyChannel(tableName string) string {
	return tableName + "_changed"
}

// schemaStatements returns the idempotent DDL for the values table, its notify function, and its trigger.
// The trigger publishes {"path": ..., "op": ...} for every inserted, updated, or deleted row.
func schemaStatements(tableName string) []string {
	table := pq.QuoteIdentifier(tableName)
	function := pq.QuoteIdentifier(tableName + "_notify")
	trigger := pq.QuoteIdentifier(tableName + "_notify_trigger")
	channel := pq.QuoteLiteral(notifyChannel(tableName))

	return []string{
		fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
	%s text PRIMARY KEY,
	%s jsonb NOT NULL,
	%s timestamptz NOT NULL DEFAULT now()
)`,
			table, colPath, colValue, colUpdatedAt,
		),

		fmt.Sprintf(
			`CREATE OR REPLACE FUNCTION %s() RETURNS trigger LANGUAGE plpgsql AS $$
DECLARE
	changed_path text;
BEGIN
	IF TG_OP = 'DELETE' THEN
		changed_path := OLD.%s;
	ELSE
		changed_path := NEW.%s;
	END IF;

	PERFORM pg_notify(%s, json_build_object('path', changed_path, 'op', TG_OP)::text);

	RETURN NULL;
END;
$$`,
			function, colPath, colPath, channel,
		),

		fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, trigger, table),

		fmt.Sprintf(
			`CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION %s()`,
			trigger, table, function,
		),
	}
}
