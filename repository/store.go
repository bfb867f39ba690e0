package repository

import (
	"context"
	"errors"

	"slipsync/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements the slip read/write contract on top of the storage Gateway.
// Every call asks the gateway for the handle, so a degraded gateway turns into
// ErrStorageUnavailable instead of a nil dereference.
type Store struct {
	gw *database.Gateway
}

func New(gw *database.Gateway) *Store {
	return &Store{gw: gw}
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	db, err := s.gw.DB()
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// ListQuery carries already-validated paging and sorting options.
type ListQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

func (q ListQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

func (q ListQuery) apply(db *gorm.DB) *gorm.DB {
	if q.SortBy != "" {
		db = db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: q.SortBy},
			Desc:   q.SortOrder != "asc",
		})
	}
	// stable paging when sort keys tie
	db = db.Order("id")
	if q.Limit > 0 {
		db = db.Limit(q.Limit).Offset(q.Offset())
	}
	return db
}

// upsertRow locks the row matched by query (if any), lets apply fill it in and
// writes it back. A concurrent insert of the same key loses the unique index
// race once; the retry then finds the row and merges into it.
func upsertRow[T any](ctx context.Context, s *Store, apply func(row *T, exists bool), query string, args ...any) (*T, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var row *T
	for attempt := 0; attempt < 2; attempt++ {
		row = new(T)
		err = db.Transaction(func(tx *gorm.DB) error {
			findErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where(query, args...).
				Take(row).Error
			switch {
			case findErr == nil:
				apply(row, true)
				return tx.Save(row).Error
			case errors.Is(findErr, gorm.ErrRecordNotFound):
				apply(row, false)
				return tx.Create(row).Error
			default:
				return findErr
			}
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return nil, s.gw.Observe(err)
	}
	return row, nil
}
