package database

// Snapshot queries
const (
	GetSnapshotSQL = `
		SELECT value FROM pos_snapshots WHERE snapshot_key = $1`

	UpsertSnapshotSQL = `
		INSERT INTO pos_snapshots (snapshot_key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (snapshot_key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()`
)
