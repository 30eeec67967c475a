// Package migration applies versioned SQL schema changes.
//
// Migration files are named {version}_{description}.sql and are embedded in
// the binary. Each file runs inside a transaction together with its
// schema_migrations record, so a failed file leaves no partial state behind.
// Applied files are verified by checksum on every run.
package migration
