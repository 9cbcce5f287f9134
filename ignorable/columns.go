package ignorable

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/hatlonely/ignorable/schema"
)

// Columns 返回过滤后的列，首次调用时从后端获取
func (t *EntityType) Columns(ctx context.Context) ([]schema.Column, error) {
	m, err := t.metadata(ctx)
	if err != nil {
		return nil, err
	}
	return append([]schema.Column(nil), m.columns...), nil
}

// ColumnNames 返回过滤后的列名
func (t *EntityType) ColumnNames(ctx context.Context) ([]string, error) {
	m, err := t.metadata(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), m.names...), nil
}

// AllColumns 返回后端的全部列，不做过滤
func (t *EntityType) AllColumns(ctx context.Context) ([]schema.Column, error) {
	full, err := t.loadFull(ctx)
	if err != nil {
		return nil, err
	}
	return append([]schema.Column(nil), full...), nil
}

func (t *EntityType) AllColumnNames(ctx context.Context) ([]string, error) {
	full, err := t.loadFull(ctx)
	if err != nil {
		return nil, err
	}
	return schema.Names(full), nil
}

// ResetMetadata 清除 t 和所有后代类型的列缓存，下次访问时重新获取
func (t *EntityType) ResetMetadata() {
	for _, c := range append([]*EntityType{t}, t.registry.Descendants(t)...) {
		c.mu.Lock()
		c.resetLocked()
		c.mu.Unlock()
		c.registry.observer.observeReset(c)
	}
	t.logger.Debug("metadata reset")
}

// SetPrimaryKey 指定主键列，不指定时使用后端列信息中的主键
func (t *EntityType) SetPrimaryKey(column string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.primaryKey = column
}

func (t *EntityType) PrimaryKey(ctx context.Context) (string, error) {
	t.mu.RLock()
	pk := t.primaryKey
	t.mu.RUnlock()
	if pk != "" {
		return pk, nil
	}

	full, err := t.loadFull(ctx)
	if err != nil {
		return "", err
	}
	if pk = schema.PrimaryKey(full); pk == "" {
		return "", errors.Wrapf(ErrNoPrimaryKey, "type %s", t.name)
	}
	return pk, nil
}

// metadata 返回 ctx 下的视图，缓存被重置后重新构建；作用域内的视图保存在作用域上，不影响类型的缓存
func (t *EntityType) metadata(ctx context.Context) (*metadata, error) {
	s := t.scopeOf(ctx)
	v := Normal()
	if s != nil {
		v = s.visibility
	}

	for {
		t.mu.RLock()
		m, gen := t.cachedMetadataLocked(s), t.generation
		t.mu.RUnlock()
		if m != nil {
			return m, nil
		}

		full, err := t.loadFull(ctx)
		if err != nil {
			return nil, err
		}
		hidden := t.hiddenFunc(v)

		t.mu.Lock()
		// 构建期间发生了重置，用新的状态重来
		if t.generation != gen {
			t.mu.Unlock()
			continue
		}
		if m = t.cachedMetadataLocked(s); m == nil {
			m = buildMetadata(full, hidden)
			if s != nil {
				s.meta, s.generation, s.projection = m, gen, nil
			} else {
				t.meta = m
			}
		}
		t.mu.Unlock()
		return m, nil
	}
}

// cachedMetadataLocked 返回已经构建好的视图，s 为 nil 时返回类型上的视图
func (t *EntityType) cachedMetadataLocked(s *scopeState) *metadata {
	if s == nil {
		return t.meta
	}
	if s.generation != t.generation {
		return nil
	}
	return s.meta
}

// loadFull 返回后端全部列，并发的首次获取只访问一次后端
func (t *EntityType) loadFull(ctx context.Context) ([]schema.Column, error) {
	t.mu.RLock()
	full, gen := t.full, t.fullGeneration
	t.mu.RUnlock()
	if full != nil {
		return full, nil
	}

	v, err, _ := t.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		start := time.Now()
		var columns []schema.Column
		err := t.registry.observer.observeFetch(ctx, t, func(ctx context.Context) (int, error) {
			var err error
			columns, err = t.registry.fetcher.FetchColumns(ctx, t.table)
			return len(columns), err
		})
		if err != nil {
			t.logger.WarnContext(ctx, "fetch columns failed", "error", err)
			return nil, errors.WithMessagef(err, "fetch columns of %s failed", t.name)
		}
		t.logger.DebugContext(ctx, "columns fetched", "count", len(columns), "duration", time.Since(start))

		t.mu.Lock()
		if t.fullGeneration == gen && t.full == nil {
			t.full = columns
		}
		t.mu.Unlock()
		return columns, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]schema.Column), nil
}
