// Package postgres provides the Postgres-backed article store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riverdogs/newscrawler/internal/scraper"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrNotFound is returned when a lookup matches no article.
var ErrNotFound = errors.New("article not found")

// Config controls the Postgres connection pool used for article rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ArticleStore persists articles keyed by URL.
type ArticleStore struct {
	pool  dbPool
	table string
}

// Stats summarizes the stored articles.
type Stats struct {
	TotalArticles int              `json:"total_articles"`
	Latest        *scraper.Article `json:"latest_article"`
	Oldest        *scraper.Article `json:"oldest_article"`
}

// New creates a Postgres-backed ArticleStore using the provided config.
func New(ctx context.Context, cfg Config) (*ArticleStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ArticleStore{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool, table string) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ArticleStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const articleColumns = `url, title, subheadline, content, date, section,
		images, tags, social_shares, author, last_updated, created_at, updated_at`

// Upsert writes the article keyed by its URL inside a single transaction:
// an existing row has every mutable field overwritten and updated_at stamped,
// a missing row is inserted. It returns true when a new row was created. A
// failure rolls back this record only.
func (s *ArticleStore) Upsert(ctx context.Context, article scraper.Article) (created bool, err error) {
	images, tags, social, author, err := marshalDocuments(article)
	if err != nil {
		return false, fmt.Errorf("marshal article documents: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	lookup := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE url = $1)`, s.table)
	if err = tx.QueryRow(ctx, lookup, article.URL).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup article: %w", err)
	}

	now := time.Now().UTC()
	if exists {
		update := fmt.Sprintf(`
			UPDATE %s
			SET title = $2, subheadline = $3, content = $4, date = $5,
				section = $6, images = $7, tags = $8, social_shares = $9,
				author = $10, last_updated = $11, updated_at = $12
			WHERE url = $1`, s.table)
		_, err = tx.Exec(ctx, update,
			article.URL, article.Title, article.Subheadline, article.Content,
			article.Date, article.Section, images, tags, social, author,
			article.LastUpdated, now,
		)
		if err != nil {
			return false, fmt.Errorf("update article: %w", err)
		}
	} else {
		insert := fmt.Sprintf(`
			INSERT INTO %s (`+articleColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, s.table)
		_, err = tx.Exec(ctx, insert,
			article.URL, article.Title, article.Subheadline, article.Content,
			article.Date, article.Section, images, tags, social, author,
			article.LastUpdated, now, now,
		)
		if err != nil {
			return false, fmt.Errorf("insert article: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit upsert: %w", err)
	}
	return !exists, nil
}

// List returns articles ordered by date descending, with the total row count
// for pagination.
func (s *ArticleStore) List(ctx context.Context, limit, offset int) ([]scraper.Article, int, error) {
	total, err := s.count(ctx, "", "")
	if err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`
		SELECT `+articleColumns+`
		FROM %s
		ORDER BY date DESC
		LIMIT $1 OFFSET $2`, s.table)
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()
	articles, err := scanArticles(rows)
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// Search returns articles whose title or content matches the query,
// case-insensitively, ordered by date descending.
func (s *ArticleStore) Search(ctx context.Context, q string, limit, offset int) ([]scraper.Article, int, error) {
	pattern := "%" + q + "%"
	total, err := s.count(ctx, `WHERE title ILIKE $1 OR content ILIKE $1`, pattern)
	if err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`
		SELECT `+articleColumns+`
		FROM %s
		WHERE title ILIKE $1 OR content ILIKE $1
		ORDER BY date DESC
		LIMIT $2 OFFSET $3`, s.table)
	rows, err := s.pool.Query(ctx, query, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search articles: %w", err)
	}
	defer rows.Close()
	articles, err := scanArticles(rows)
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// Stats reports the total record count plus the newest and oldest articles by
// store-assigned creation time.
func (s *ArticleStore) Stats(ctx context.Context) (Stats, error) {
	total, err := s.count(ctx, "", "")
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{TotalArticles: total}
	if total == 0 {
		return stats, nil
	}

	latest, err := s.edgeArticle(ctx, "DESC")
	if err != nil {
		return Stats{}, err
	}
	stats.Latest = latest

	oldest, err := s.edgeArticle(ctx, "ASC")
	if err != nil {
		return Stats{}, err
	}
	stats.Oldest = oldest
	return stats, nil
}

func (s *ArticleStore) count(ctx context.Context, where string, arg string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, s.table, where)
	var total int
	var err error
	if where == "" {
		err = s.pool.QueryRow(ctx, query).Scan(&total)
	} else {
		err = s.pool.QueryRow(ctx, query, arg).Scan(&total)
	}
	if err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return total, nil
}

func (s *ArticleStore) edgeArticle(ctx context.Context, direction string) (*scraper.Article, error) {
	query := fmt.Sprintf(`
		SELECT `+articleColumns+`
		FROM %s
		ORDER BY created_at %s
		LIMIT 1`, s.table, direction)
	row := s.pool.QueryRow(ctx, query)
	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return article, nil
}

func marshalDocuments(article scraper.Article) (images, tags, social, author []byte, err error) {
	if images, err = json.Marshal(article.Images); err != nil {
		return nil, nil, nil, nil, err
	}
	if tags, err = json.Marshal(article.Tags); err != nil {
		return nil, nil, nil, nil, err
	}
	if social, err = json.Marshal(article.SocialShares); err != nil {
		return nil, nil, nil, nil, err
	}
	if author, err = json.Marshal(article.Author); err != nil {
		return nil, nil, nil, nil, err
	}
	return images, tags, social, author, nil
}

func scanArticles(rows pgx.Rows) ([]scraper.Article, error) {
	var articles []scraper.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}
	return articles, nil
}

func scanArticle(row pgx.Row) (*scraper.Article, error) {
	var (
		article scraper.Article
		images  []byte
		tags    []byte
		social  []byte
		author  []byte
	)
	err := row.Scan(
		&article.URL, &article.Title, &article.Subheadline, &article.Content,
		&article.Date, &article.Section, &images, &tags, &social, &author,
		&article.LastUpdated, &article.CreatedAt, &article.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan article row: %w", err)
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &article.Images); err != nil {
			return nil, fmt.Errorf("decode images: %w", err)
		}
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &article.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if len(social) > 0 {
		if err := json.Unmarshal(social, &article.SocialShares); err != nil {
			return nil, fmt.Errorf("decode social shares: %w", err)
		}
	}
	if len(author) > 0 {
		if err := json.Unmarshal(author, &article.Author); err != nil {
			return nil, fmt.Errorf("decode author: %w", err)
		}
	}
	return &article, nil
}
