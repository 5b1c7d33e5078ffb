package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS account_state (
	slot                 INTEGER PRIMARY KEY CHECK(slot = 1),
	id                   TEXT NOT NULL,
	email_address        TEXT NOT NULL,
	protocol             TEXT NOT NULL DEFAULT '' CHECK(protocol IN ('', 'imap', 'demo')),
	hostname             TEXT NOT NULL DEFAULT '',
	port                 INTEGER NOT NULL DEFAULT 0,
	connection_security  TEXT NOT NULL DEFAULT '',
	authentication_types TEXT NOT NULL DEFAULT '[]',
	username             TEXT NOT NULL DEFAULT '',
	is_automatic_config  INTEGER NOT NULL DEFAULT 0 CHECK(is_automatic_config IN (0, 1)),
	created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE account_state ADD COLUMN has_authorization INTEGER NOT NULL DEFAULT 0
	CHECK(has_authorization IN (0, 1));

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
