package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"

	_ "modernc.org/sqlite"
)

// SQLiteRequestLogStorage 独立的 sqlite 文件保存请求日志
type SQLiteRequestLogStorage struct {
	db *sql.DB
}

func NewSQLiteRequestLogStorage(dsn string) (*SQLiteRequestLogStorage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// sqlite 只允许单写
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	s := &SQLiteRequestLogStorage{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

var _ RequestLogStorageIface = (*SQLiteRequestLogStorage)(nil)

func (s *SQLiteRequestLogStorage) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS fake_api_request_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule_id TEXT NOT NULL,
		method TEXT,
		path TEXT,
		query TEXT,
		headers TEXT,
		body TEXT,
		response_status INTEGER,
		response_time INTEGER,
		timestamp DATETIME,
		user_agent TEXT,
		ip TEXT,
		user_id TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_request_logs_rule_id ON fake_api_request_logs(rule_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to init sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteRequestLogStorage) SaveRequestLog(ctx context.Context, entry *model.RequestLog) error {
	headers, err := json.Marshal(entry.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO fake_api_request_logs
			(rule_id, method, path, query, headers, body, response_status, response_time, timestamp, user_agent, ip, user_id, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.RuleID, entry.Method, entry.Path, entry.Query, string(headers), entry.Body,
		entry.ResponseStatus, entry.ResponseTime, entry.Timestamp.UTC(), entry.UserAgent, entry.IP, entry.UserID, entry.Error)
	if err != nil {
		return fmt.Errorf("failed to save request log: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = uint64(id)
	}
	return nil
}

func (s *SQLiteRequestLogStorage) ListRequestLogs(ctx context.Context, ruleID string, limit int) ([]*model.RequestLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rule_id, method, path, query, headers, body, response_status, response_time,
			timestamp, user_agent, ip, user_id, error
		FROM fake_api_request_logs
		WHERE rule_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list request logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.RequestLog
	for rows.Next() {
		var (
			l       model.RequestLog
			headers string
			ts      time.Time
		)
		err := rows.Scan(&l.ID, &l.RuleID, &l.Method, &l.Path, &l.Query, &headers, &l.Body,
			&l.ResponseStatus, &l.ResponseTime, &ts, &l.UserAgent, &l.IP, &l.UserID, &l.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request log: %w", err)
		}
		if headers != "" {
			if err := json.Unmarshal([]byte(headers), &l.Headers); err != nil {
				return nil, fmt.Errorf("failed to decode headers: %w", err)
			}
		}
		l.Timestamp = ts
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (s *SQLiteRequestLogStorage) Close() error {
	return s.db.Close()
}
