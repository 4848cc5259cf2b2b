package main

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// QuestionStore is the SQLite-backed question bank. It is read once at
// startup to build the match deck; no match state is ever written back.
type QuestionStore struct {
	conn *sql.DB
}

// OpenQuestionStore opens (or creates) the question database. A fresh
// database is seeded with the built-in bank so the server is playable
// out of the box.
func OpenQuestionStore(path string) (*QuestionStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	s := &QuestionStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.seedIfEmpty(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *QuestionStore) Close() error {
	return s.conn.Close()
}

// migrate creates tables if they don't exist
func (s *QuestionStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prompt TEXT NOT NULL,
		choices TEXT NOT NULL,
		correct INTEGER NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// seedIfEmpty inserts the built-in questions into a fresh database
func (s *QuestionStore) seedIfEmpty() error {
	n, err := s.Count()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, q := range builtinQuestions {
		choices, err := json.Marshal(q.Choices)
		if err != nil {
			return err
		}
		_, err = s.conn.Exec(
			"INSERT INTO questions (prompt, choices, correct) VALUES (?, ?, ?)",
			q.Prompt, string(choices), q.Correct,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored questions
func (s *QuestionStore) Count() (int, error) {
	var n int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM questions").Scan(&n)
	return n, err
}

// Load reads the whole question bank
func (s *QuestionStore) Load() ([]*Question, error) {
	rows, err := s.conn.Query("SELECT id, prompt, choices, correct FROM questions")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Question
	for rows.Next() {
		var (
			id      int64
			choices string
			q       Question
		)
		if err := rows.Scan(&id, &q.Prompt, &choices, &q.Correct); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(choices), &q.Choices); err != nil {
			return nil, fmt.Errorf("question %d: bad choices: %w", id, err)
		}
		if q.Correct < 0 || q.Correct >= len(q.Choices) {
			return nil, fmt.Errorf("question %d: correct index out of range", id)
		}
		q.ID = fmt.Sprintf("q%d", id)
		result = append(result, &q)
	}
	return result, rows.Err()
}
