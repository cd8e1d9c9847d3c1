package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"tsprep/internal/model"
)

var identRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// OpenMySQL accepts a driver-native DSN or a mysql:// / mariadb:// URL.
func OpenMySQL(dsn string) (*sql.DB, error) {
	mysqlDSN, err := toMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("incomplete dsn (user/host/db)")
		}
		// Timestamps are UTC end to end.
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC", user, pass, host, db), nil
	}
	return dsn, nil
}

// MySQLSource reads observations from one table ordered by timestamp.
// A SQL NULL value becomes NaN, a gap for the regularizer.
type MySQLSource struct {
	DB              *sql.DB
	Table           string
	TimestampColumn string
	ValueColumn     string
	ItemColumn      string // optional
	Start, End      time.Time
}

func (s *MySQLSource) Load(ctx context.Context) ([]model.Observation, error) {
	for _, ident := range []string{s.Table, s.TimestampColumn, s.ValueColumn} {
		if !identRe.MatchString(ident) {
			return nil, fmt.Errorf("invalid identifier %q", ident)
		}
	}
	if s.ItemColumn != "" && !identRe.MatchString(s.ItemColumn) {
		return nil, fmt.Errorf("invalid identifier %q", s.ItemColumn)
	}

	cols := fmt.Sprintf("`%s`, `%s`", s.TimestampColumn, s.ValueColumn)
	if s.ItemColumn != "" {
		cols += fmt.Sprintf(", `%s`", s.ItemColumn)
	}
	q := fmt.Sprintf("SELECT %s FROM `%s` WHERE `%s` >= ? AND `%s` <= ? ORDER BY `%s`",
		cols, s.Table, s.TimestampColumn, s.TimestampColumn, s.TimestampColumn)

	rows, err := s.DB.QueryContext(ctx, q,
		s.Start.UTC().Format(model.TimestampLayout), s.End.UTC().Format(model.TimestampLayout))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	defer rows.Close()

	var obs []model.Observation
	for rows.Next() {
		var (
			ts   time.Time
			val  sql.NullFloat64
			item sql.NullString
		)
		if s.ItemColumn != "" {
			err = rows.Scan(&ts, &val, &item)
		} else {
			err = rows.Scan(&ts, &val)
		}
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		v := math.NaN()
		if val.Valid {
			v = val.Float64
		}
		obs = append(obs, model.Observation{Timestamp: ts.UTC(), Value: v, ItemID: item.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return obs, nil
}
