package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imyashkale/inventoryserver/internal/filter"
	"github.com/imyashkale/inventoryserver/internal/models"
	"gorm.io/gorm"
)

// listScope turns a parsed query into a gorm scope. Discarded rows are hidden
// unless the query itself names the discarded attribute.
func listScope(schema filter.Schema, q filter.Query) (func(*gorm.DB) *gorm.DB, error) {
	conds := make([]filter.SQLCondition, 0, len(q.And)+2)

	where, err := schema.Where(q.Filter)
	if err != nil {
		return nil, err
	}
	conds = append(conds, where)

	for _, f := range q.And {
		c, err := schema.Where(f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}

	anyOf, err := schema.WhereAny(q.Or)
	if err != nil {
		return nil, err
	}
	conds = append(conds, anyOf)

	hideDiscarded := !q.Names("discarded")

	return func(db *gorm.DB) *gorm.DB {
		if hideDiscarded {
			db = db.Where("discarded = ?", false)
		}
		for _, c := range conds {
			if !c.IsEmpty() {
				db = db.Where(c.Clause, c.Params...)
			}
		}
		return db
	}, nil
}

// findPage counts the matching rows, then loads one ordered page into dest.
// A zero limit loads every row from offset onwards.
func findPage(db *gorm.DB, model any, schema filter.Schema, q filter.Query, dest any, preload func(*gorm.DB) *gorm.DB) (int, error) {
	scope, err := listScope(schema, q)
	if err != nil {
		return 0, err
	}
	order, err := schema.OrderBy(q.Sort)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := db.Model(model).Scopes(scope).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	if total == 0 || int64(q.Offset) >= total {
		return int(total), nil
	}

	limit := q.Limit
	if limit == 0 {
		limit = int(total)
	}

	tx := db.Model(model).Scopes(scope).Order(order).Limit(limit).Offset(q.Offset)
	if preload != nil {
		tx = preload(tx)
	}
	if err := tx.Find(dest).Error; err != nil {
		return 0, fmt.Errorf("failed to load rows: %w", err)
	}
	return int(total), nil
}

// translateError maps driver errors onto the domain taxonomy
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", models.ErrAlreadyExists, err)
	}
	return err
}
