package database

import (
	"fmt"
	"regexp"

	"gorm.io/gorm"
)

// NotifiedTables are the tables whose row changes are pushed on the change
// feed channel.
var NotifiedTables = []string{"products", "sessions", "session_inventory"}

var channelName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// notifyFunctionSQL builds a trigger function that publishes
// {table, op, id, session_id} as JSON on channel.
func notifyFunctionSQL(channel string) string {
	return fmt.Sprintf(`
CREATE OR REPLACE FUNCTION pos_notify_change() RETURNS trigger AS $$
DECLARE
	rec RECORD;
	row_id TEXT;
	sid TEXT;
BEGIN
	IF TG_OP = 'DELETE' THEN
		rec := OLD;
	ELSE
		rec := NEW;
	END IF;

	IF TG_TABLE_NAME = 'session_inventory' THEN
		row_id := rec.product_id::text;
		sid := rec.session_id;
	ELSIF TG_TABLE_NAME = 'sessions' THEN
		row_id := rec.id;
		sid := rec.id;
	ELSE
		row_id := rec.id::text;
		sid := '';
	END IF;

	PERFORM pg_notify('%s', json_build_object(
		'table', TG_TABLE_NAME,
		'op', TG_OP,
		'id', row_id,
		'session_id', sid
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;`, channel)
}

// InstallChangeTriggers (re)creates the notify function and attaches an
// AFTER trigger to every table in NotifiedTables.
func InstallChangeTriggers(db *gorm.DB, channel string) error {
	if !channelName.MatchString(channel) {
		return fmt.Errorf("invalid notify channel %q", channel)
	}
	if err := db.Exec(notifyFunctionSQL(channel)).Error; err != nil {
		return fmt.Errorf("create notify function: %w", err)
	}
	for _, table := range NotifiedTables {
		trigger := table + "_notify_change"
		if err := db.Exec(fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, trigger, table)).Error; err != nil {
			return fmt.Errorf("drop trigger %s: %w", trigger, err)
		}
		stmt := fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION pos_notify_change()`, trigger, table)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create trigger %s: %w", trigger, err)
		}
	}
	return nil
}
