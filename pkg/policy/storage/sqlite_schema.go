package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the policy database schema.
// AUTOINCREMENT keeps SQLite from handing out the ID of a deleted row again.
// expiry_date is stored as TEXT in YYYY-MM-DD form so both drivers return it
// verbatim and lexical order matches date order.
const Schema = `
CREATE TABLE IF NOT EXISTS policies (
    policy_id INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_name TEXT NOT NULL CHECK (length(customer_name) > 0),
    policy_type TEXT NOT NULL CHECK (policy_type IN ('HOME', 'AUTO', 'HEALTH', 'TRAVEL', 'LIFE')),
    expiry_date TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_expiry_date ON policies(expiry_date);
CREATE INDEX IF NOT EXISTS idx_policies_policy_type ON policies(policy_type);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// InsertSchemaVersion records the schema version if it is not present yet.
const InsertSchemaVersion = `
INSERT INTO schema_version (version)
VALUES (?)
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
