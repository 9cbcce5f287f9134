package ignorable

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/ignorable/rdb"
	"github.com/hatlonely/ignorable/rdb/query"
)

const (
	createdAtColumn = "created_at"
	updatedAtColumn = "updated_at"
)

// Model 基于 rdb 的持久化入口，查询都会应用类型的默认 scope
type Model struct {
	t   *EntityType
	sql *rdb.SQL
	now func() time.Time
}

type ModelOption func(*Model)

// WithClock 替换时间戳使用的时钟
func WithClock(now func() time.Time) ModelOption {
	return func(m *Model) {
		m.now = now
	}
}

func NewModel(t *EntityType, s *rdb.SQL, opts ...ModelOption) *Model {
	m := &Model{t: t, sql: s, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) Type() *EntityType {
	return m.t
}

// New 构建未保存的实例，后端的每一列都存在且为 nil
func (m *Model) New(ctx context.Context) (*Instance, error) {
	full, err := m.t.AllColumns(ctx)
	if err != nil {
		return nil, err
	}
	record := rdb.NewRecord()
	for _, c := range full {
		record.Set(c.Name, nil)
	}
	return &Instance{t: m.t, attrs: record}, nil
}

func (m *Model) Create(ctx context.Context, values map[string]any) (*Instance, error) {
	inst, err := m.New(ctx)
	if err != nil {
		return nil, err
	}
	if err := inst.Assign(ctx, values); err != nil {
		return nil, err
	}
	if err := m.Save(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Save 只写入被修改过的列，隐藏列保持后端原有的值
func (m *Model) Save(ctx context.Context, inst *Instance) error {
	now := m.now()
	pk, err := m.t.PrimaryKey(ctx)

	if !inst.persisted {
		if err != nil && !errors.Is(err, ErrNoPrimaryKey) {
			return err
		}
		m.touch(ctx, inst, now, false, createdAtColumn, updatedAtColumn)

		id, err := m.sql.Insert(ctx, m.t.table, m.changes(inst), pk)
		if err != nil {
			return errors.WithMessagef(err, "create %s failed", m.t.name)
		}
		if pk != "" {
			if v, _ := inst.attrs.Get(pk); v == nil {
				inst.attrs.Set(pk, id)
			}
		}
		inst.persisted = true
		inst.changed = nil
		return nil
	}

	if err != nil {
		return err
	}
	if len(inst.changed) == 0 {
		return nil
	}
	id, ok := inst.attrs.Get(pk)
	if !ok || id == nil {
		return errors.Wrapf(ErrNotPersisted, "%s without %s", m.t.name, pk)
	}
	m.touch(ctx, inst, now, true, updatedAtColumn)

	if _, err := m.sql.Update(ctx, m.t.table, m.changes(inst), &query.TermQuery{Field: m.sql.QuoteIdentifier(pk), Value: id}); err != nil {
		return errors.WithMessagef(err, "update %s failed", m.t.name)
	}
	inst.changed = nil
	return nil
}

// touch 只在时间戳列可见时写入；force 为 false 时只填充空值，为 true 时不覆盖调用方显式修改的值
func (m *Model) touch(ctx context.Context, inst *Instance, now time.Time, force bool, columns ...string) {
	for _, col := range columns {
		a, ok := inst.accessor(ctx, col)
		if !ok {
			continue
		}
		if a.Get(inst) == nil || (force && !slices.Contains(inst.changed, col)) {
			a.Set(inst, now)
		}
	}
}

func (m *Model) changes(inst *Instance) *rdb.Record {
	record := rdb.NewRecord()
	for _, col := range inst.changed {
		v, _ := inst.attrs.Get(col)
		record.Set(col, v)
	}
	return record
}

// Find 查询满足条件的实例，q 为 nil 时查询全部
func (m *Model) Find(ctx context.Context, q query.Query, orderBy ...string) ([]*Instance, error) {
	stmt, err := m.t.Statement(ctx)
	if err != nil {
		return nil, err
	}
	stmt.AndWhere(q).Order(orderBy...)
	return m.find(ctx, stmt)
}

func (m *Model) find(ctx context.Context, stmt *rdb.SelectStatement) ([]*Instance, error) {
	records, err := m.sql.Select(ctx, stmt)
	if err != nil {
		return nil, errors.WithMessagef(err, "find %s failed", m.t.name)
	}
	instances := make([]*Instance, len(records))
	for i, r := range records {
		instances[i] = m.t.Instantiate(r)
	}
	return instances, nil
}

// First 按主键顺序返回第一个实例，没有时返回 rdb.ErrRecordNotFound
func (m *Model) First(ctx context.Context, q query.Query) (*Instance, error) {
	stmt, err := m.t.Statement(ctx)
	if err != nil {
		return nil, err
	}
	stmt.AndWhere(q)
	if pk, err := m.t.PrimaryKey(ctx); err == nil {
		stmt.Order(m.qualify(pk))
	}
	stmt.Limit = 1

	instances, err := m.find(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, errors.Wrapf(rdb.ErrRecordNotFound, "%s", m.t.name)
	}
	return instances[0], nil
}

func (m *Model) Get(ctx context.Context, id any) (*Instance, error) {
	pk, err := m.t.PrimaryKey(ctx)
	if err != nil {
		return nil, err
	}
	return m.First(ctx, &query.TermQuery{Field: m.qualify(pk), Value: id})
}

// Reload 用后端的数据替换实例的数据，未保存的修改会丢失
func (m *Model) Reload(ctx context.Context, inst *Instance) error {
	id, err := m.id(ctx, inst)
	if err != nil {
		return err
	}
	fresh, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	inst.attrs = fresh.attrs
	inst.changed = nil
	return nil
}

func (m *Model) Delete(ctx context.Context, inst *Instance) error {
	pk, err := m.t.PrimaryKey(ctx)
	if err != nil {
		return err
	}
	id, err := m.id(ctx, inst)
	if err != nil {
		return err
	}
	n, err := m.sql.Delete(ctx, m.t.table, &query.TermQuery{Field: m.sql.QuoteIdentifier(pk), Value: id})
	if err != nil {
		return errors.WithMessagef(err, "delete %s failed", m.t.name)
	}
	if n == 0 {
		return errors.Wrapf(rdb.ErrRecordNotFound, "%s %v", m.t.name, id)
	}
	inst.persisted = false
	return nil
}

// HasMany 查找 foreignKey 指向 parent 主键的 child 实例
func (m *Model) HasMany(ctx context.Context, parent *Instance, child *Model, foreignKey string) ([]*Instance, error) {
	id, err := m.id(ctx, parent)
	if err != nil {
		return nil, err
	}
	return child.Find(ctx, &query.TermQuery{Field: child.qualify(foreignKey), Value: id})
}

// BelongsTo 查找 inst 的 foreignKey 指向的 target 实例，外键为空时返回 nil
//
// 外键读取的是未过滤的数据，外键列被投影排除时单独查询这一列
func (m *Model) BelongsTo(ctx context.Context, inst *Instance, foreignKey string, target *Model) (*Instance, error) {
	fk, err := m.rawValue(ctx, inst, foreignKey)
	if err != nil {
		return nil, err
	}
	if fk == nil {
		return nil, nil
	}
	return target.Get(ctx, fk)
}

func (m *Model) id(ctx context.Context, inst *Instance) (any, error) {
	pk, err := m.t.PrimaryKey(ctx)
	if err != nil {
		return nil, err
	}
	id, ok := inst.attrs.Get(pk)
	if !inst.persisted || !ok || id == nil {
		return nil, errors.Wrapf(ErrNotPersisted, "%s", m.t.name)
	}
	return id, nil
}

func (m *Model) rawValue(ctx context.Context, inst *Instance, column string) (any, error) {
	if v, ok := inst.attrs.Get(column); ok {
		return v, nil
	}

	pk, err := m.t.PrimaryKey(ctx)
	if err != nil {
		return nil, err
	}
	id, err := m.id(ctx, inst)
	if err != nil {
		return nil, err
	}

	stmt := rdb.NewSelectStatement(m.t.table).Select(column).AndWhere(&query.TermQuery{Field: m.qualify(pk), Value: id})
	records, err := m.sql.Select(ctx, stmt)
	if err != nil {
		return nil, errors.WithMessagef(err, "load %s.%s failed", m.t.name, column)
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(rdb.ErrRecordNotFound, "%s %v", m.t.name, id)
	}
	v, _ := records[0].Get(column)
	inst.attrs.Set(column, v)
	return v, nil
}

func (m *Model) qualify(column string) string {
	return m.sql.QuoteIdentifier(m.t.table + "." + column)
}
