package option

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"chwone-controlplane/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm query before it runs.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ   Operator = "="
	NEQ  Operator = "<>"
	GT   Operator = ">"
	GTE  Operator = ">="
	LT   Operator = "<"
	LTE  Operator = "<="
	IN   Operator = "IN"
	LIKE Operator = "LIKE"
)

const (
	defaultLimit = 10
	maxLimit     = 250
)

var columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a WHERE clause for cond. Unknown operators and
// field names that are not plain column identifiers are ignored.
func ApplyOperator(conds ...Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		for _, c := range conds {
			if !columnPattern.MatchString(c.Field) {
				continue
			}
			switch c.Operator {
			case EQ, NEQ, GT, GTE, LT, LTE, LIKE:
				db = db.Where(fmt.Sprintf("%s %s ?", c.Field, c.Operator), c.Value)
			case IN:
				db = db.Where(fmt.Sprintf("%s IN ?", c.Field), c.Value)
			}
		}
		return db
	}
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	// Allow lists the columns callers may sort by. An empty SortBy, or one
	// outside Allow, falls back to created_at.
	Allow map[string]bool
}

func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := "created_at"
		if s.SortBy != "" && s.Allow[s.SortBy] {
			column = s.SortBy
		}

		desc := strings.EqualFold(s.OrderBy, "desc")
		return db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: column},
			Desc:   desc,
		})
	}
}

// ApplyPagination limits the result set. A limit outside 1..250 falls back
// to the default page size.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		limit := p.Limit
		if limit <= 0 || limit > maxLimit {
			limit = defaultLimit
		}
		return db.Limit(limit)
	}
}

// WithLimit caps the result set at n rows without the pagination bounds.
func WithLimit(n int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	}
}

// WithCursor keeps rows strictly older than the cursor, for newest-first
// listings keyed on (created_at, id).
func WithCursor(c *pagination.Cursor) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if c == nil || c.CreatedAt == "" {
			return db
		}
		at, err := time.Parse(time.RFC3339Nano, c.CreatedAt)
		if err != nil {
			return db
		}
		return db.Where("((created_at < ?) OR (created_at = ? AND id < ?))", at, at, c.ID)
	}
}

// LockingUpdate is a scope that selects rows FOR UPDATE.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}
