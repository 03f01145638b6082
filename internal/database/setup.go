package database

import (
	"database/sql"
	"fmt"
	"synapsechat-backend/internal/config"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func setPragmaValues(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	// these next 2 extremely speed up performance of sqlite
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return err
	}

	if _, err := db.Exec("PRAGMA synchronous = normal"); err != nil {
		return err
	}

	return nil
}

func logPragmaValues(sugar *zap.SugaredLogger, db *sql.DB) error {
	var foreignKeysValue bool
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysValue)
	if err != nil {
		return err
	}

	var journalModeValue string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&journalModeValue)
	if err != nil {
		return err
	}

	var synchronousValue int
	err = db.QueryRow("PRAGMA synchronous").Scan(&synchronousValue)
	if err != nil {
		return err
	}

	var synchronousValueStr string
	switch synchronousValue {
	case 0:
		synchronousValueStr = "off"
	case 1:
		synchronousValueStr = "normal"
	case 2:
		synchronousValueStr = "full"
	case 3:
		synchronousValueStr = "extra"
	default:
		return fmt.Errorf("synchronous value is unsupported")
	}

	sugar.Debugw("sqlite pragmas", "foreign_keys", foreignKeysValue, "journal_mode", journalModeValue, "synchronous", synchronousValueStr)

	return nil
}

// OpenSqlite opens (or creates) a sqlite database at path and creates the tables.
// ":memory:" gives a private in-memory database.
func OpenSqlite(sugar *zap.SugaredLogger, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// there can be sqlite busy errors if this is not set to 1
	db.SetMaxOpenConns(1)

	err = setPragmaValues(db)
	if err != nil {
		return db, err
	}

	err = logPragmaValues(sugar, db)
	if err != nil {
		return db, err
	}

	return db, setupTables(db)
}

func Setup(sugar *zap.SugaredLogger, cfg *config.Config) (*sql.DB, error) {
	if cfg.SelfContained {
		path := fmt.Sprintf("./%s.db", cfg.ProjectID)
		sugar.Infof("Connecting to sqlite database %s...", path)
		return OpenSqlite(sugar, path)
	}

	sugar.Infof("Connecting to mysql/mariadb database %s at %s:%s...", cfg.ProjectID, cfg.DbAddress, cfg.DbPort)

	db, err := sql.Open("mysql", fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&timeout=10s", cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.ProjectID))
	if err != nil {
		return db, err
	}

	db.SetMaxOpenConns(10)

	err = db.Ping()
	if err != nil {
		return db, err
	}

	return db, setupTables(db)
}

func setupTables(db *sql.DB) error {
	var err error

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS users (
				id BIGINT PRIMARY KEY,
				email VARCHAR(64) NOT NULL UNIQUE,
				display_name VARCHAR(64) NOT NULL,
				photo_url TEXT,
				password BINARY(60)
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS servers (
				id BIGINT PRIMARY KEY,
				owner_id BIGINT NOT NULL,
				name VARCHAR(64) NOT NULL,
				invite_code VARCHAR(32) NOT NULL UNIQUE,
				icon_url TEXT,
				FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS server_members (
				server_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				since TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (server_id, user_id),
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS channels (
				id BIGINT PRIMARY KEY,
				server_id BIGINT NOT NULL,
				name VARCHAR(32) NOT NULL,
				type VARCHAR(16) NOT NULL DEFAULT 'text',
				UNIQUE (server_id, name),
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS messages (
				id BIGINT PRIMARY KEY,
				channel_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				text TEXT,
				image_url TEXT,
				FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS message_reactions (
				message_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				emoji VARCHAR(32) NOT NULL,
				PRIMARY KEY (message_id, user_id, emoji),
				FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE,
				FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	return nil
}
