// Package catalog records every session the write coordinator persists in a
// SQLite database next to the logs, so operators can list what was captured
// without walking the dataset tree.
package catalog
