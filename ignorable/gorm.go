package ignorable

import (
	"context"

	"gorm.io/gorm"
)

// GormScopes 把默认 scope 转换成 gorm scope
func (t *EntityType) GormScopes(ctx context.Context) ([]func(*gorm.DB) *gorm.DB, error) {
	scopes, err := t.DefaultScopes(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]func(*gorm.DB) *gorm.DB, len(scopes))
	for i, scope := range scopes {
		result[i] = scope.Gorm
	}
	return result, nil
}

// Gorm 返回查询 t 所在表并带有默认 scope 的 gorm 查询，出错时错误记录在返回值的 Error 中
func (t *EntityType) Gorm(db *gorm.DB) *gorm.DB {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	tx := db.Table(t.table)
	scopes, err := t.GormScopes(ctx)
	if err != nil {
		tx.AddError(err)
		return tx
	}
	return tx.Scopes(scopes...)
}
