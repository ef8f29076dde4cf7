package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Database wraps a *sql.DB providing the song, playlist and user repositories
// backed by SQLite. It is safe for concurrent use because the underlying
// *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for the hot paths
	insertSongStmt      *sql.Stmt
	getSongByIDStmt     *sql.Stmt
	getSongByFileStmt   *sql.Stmt
	deleteSongStmt      *sql.Stmt
	getPlaylistStmt     *sql.Stmt
	bumpPlaylistStmt    *sql.Stmt
	getUserByEmailStmt  *sql.Stmt
	getUserByIDStmt     *sql.Stmt
	playlistSongIDsStmt *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures all required tables and indices exist. Caller should Close() it
// when finished.
func NewDatabase(dbPath string, maxConns int, logger *logrus.Logger) (*Database, error) {
	// Pragmas that must hold on every pooled connection go in the DSN.
	// _txlock=immediate makes concurrent writers queue on busy_timeout instead
	// of failing on lock upgrade.
	dsn := dbPath + "?mode=rwc&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxConns < 1 {
		maxConns = 1
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables creates tables and indices if they do not already exist, then
// executes any migrations. This is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at DATETIME NOT NULL
	);`

	songsTable := `
	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		album TEXT NOT NULL DEFAULT '',
		duration INTEGER NOT NULL DEFAULT 0 CHECK (duration >= 0),
		file_url TEXT NOT NULL UNIQUE,
		uploaded_by TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`

	playlistsTable := `
	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_public BOOLEAN NOT NULL DEFAULT FALSE,
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`

	// song_id deliberately has no foreign key: deleting a song leaves the
	// reference in place.
	playlistSongsTable := `
	CREATE TABLE IF NOT EXISTS playlist_songs (
		playlist_id TEXT NOT NULL,
		song_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		PRIMARY KEY (playlist_id, song_id)
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_songs_created ON songs(created_at);",
		"CREATE INDEX IF NOT EXISTS idx_playlists_owner ON playlists(created_by, updated_at);",
		"CREATE INDEX IF NOT EXISTS idx_playlist_songs_position ON playlist_songs(playlist_id, position);",
	}

	tables := []string{usersTable, songsTable, playlistsTable, playlistSongsTable}
	for _, table := range tables {
		if _, err := db.conn.Exec(table); err != nil {
			return err
		}
	}

	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	return db.runMigrations()
}

// runMigrations performs incremental schema updates in-place. Each migration
// should be idempotent and safe to re-run.
func (db *Database) runMigrations() error {
	// Migration 1: playlists.version backs compare-and-swap updates of the
	// song list. Databases created before it start every playlist at 1.
	exists, err := db.columnExists("playlists", "version")
	if err != nil {
		return err
	}

	if !exists {
		if _, err := db.conn.Exec("ALTER TABLE playlists ADD COLUMN version INTEGER NOT NULL DEFAULT 1"); err != nil {
			return err
		}
		db.logger.Info("Added version column to playlists table")
	}

	return nil
}

func (db *Database) columnExists(table, column string) (bool, error) {
	var exists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info(?)
		WHERE name = ?`, table, column).Scan(&exists)
	return exists, err
}

// prepareStatements prepares commonly used SQL statements
func (db *Database) prepareStatements() error {
	var err error

	prepare := func(dst **sql.Stmt, name, query string) {
		if err != nil {
			return
		}
		*dst, err = db.conn.Prepare(query)
		if err != nil {
			err = fmt.Errorf("failed to prepare %s statement: %w", name, err)
		}
	}

	prepare(&db.insertSongStmt, "insert song", `
		INSERT INTO songs (id, title, artist, album, duration, file_url, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	prepare(&db.getSongByIDStmt, "get song by ID", `
		SELECT `+songColumns+` FROM songs WHERE id = ?`)
	prepare(&db.getSongByFileStmt, "get song by file", `
		SELECT `+songColumns+` FROM songs WHERE file_url = ?`)
	prepare(&db.deleteSongStmt, "delete song", `
		DELETE FROM songs WHERE id = ?`)
	prepare(&db.getPlaylistStmt, "get playlist", `
		SELECT `+playlistColumns+` FROM playlists WHERE id = ?`)
	prepare(&db.bumpPlaylistStmt, "bump playlist version", `
		UPDATE playlists SET version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`)
	prepare(&db.playlistSongIDsStmt, "playlist song IDs", `
		SELECT song_id FROM playlist_songs WHERE playlist_id = ? ORDER BY position`)
	prepare(&db.getUserByEmailStmt, "get user by email", `
		SELECT `+userColumns+` FROM users WHERE email = ?`)
	prepare(&db.getUserByIDStmt, "get user by ID", `
		SELECT `+userColumns+` FROM users WHERE id = ?`)

	return err
}

// Ping verifies the database is reachable
func (db *Database) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.insertSongStmt,
		db.getSongByIDStmt,
		db.getSongByFileStmt,
		db.deleteSongStmt,
		db.getPlaylistStmt,
		db.bumpPlaylistStmt,
		db.playlistSongIDsStmt,
		db.getUserByEmailStmt,
		db.getUserByIDStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
