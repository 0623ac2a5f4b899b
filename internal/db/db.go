package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// runMigrations applies the column-pair chat schema. The junction-table
// representation seen in older builds is gone; the unique constraint on the
// normalized participant pair is the single authority for chat uniqueness.
func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
            id SERIAL PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            avatar TEXT NOT NULL DEFAULT '',
            bio TEXT NOT NULL DEFAULT '',
            last_seen TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chats (
            id SERIAL PRIMARY KEY,
            participant1_id INT NOT NULL REFERENCES profiles(id),
            participant2_id INT NOT NULL REFERENCES profiles(id),
            last_message TEXT NOT NULL DEFAULT '',
            last_message_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (participant1_id < participant2_id),
            UNIQUE (participant1_id, participant2_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id INT NOT NULL REFERENCES profiles(id),
            text TEXT NOT NULL,
            read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS messages_chat_created_idx ON messages (chat_id, created_at, id);`,
		`CREATE OR REPLACE FUNCTION notify_message_insert() RETURNS trigger AS $$
        BEGIN
            PERFORM pg_notify('message_inserts', row_to_json(NEW)::text);
            RETURN NEW;
        END;
        $$ LANGUAGE plpgsql;`,
		`DROP TRIGGER IF EXISTS messages_notify_insert ON messages;`,
		`CREATE TRIGGER messages_notify_insert
            AFTER INSERT ON messages
            FOR EACH ROW EXECUTE FUNCTION notify_message_insert();`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
