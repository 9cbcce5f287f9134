package rdb

// Record 一行数据，保留列在结果集中的顺序
type Record struct {
	columns []string
	data    map[string]any
}

func NewRecord() *Record {
	return &Record{data: map[string]any{}}
}

// NewRecordFromMap 按 columns 的顺序构建 Record，columns 为空时不保证顺序
func NewRecordFromMap(data map[string]any, columns ...string) *Record {
	r := NewRecord()
	for _, col := range columns {
		if v, ok := data[col]; ok {
			r.Set(col, v)
		}
	}
	for col, v := range data {
		if _, ok := r.data[col]; !ok {
			r.Set(col, v)
		}
	}
	return r
}

// Set 设置列值，已存在的列保持原来的位置
func (r *Record) Set(column string, value any) {
	if _, ok := r.data[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.data[column] = value
}

func (r *Record) Get(column string) (any, bool) {
	v, ok := r.data[column]
	return v, ok
}

func (r *Record) Has(column string) bool {
	_, ok := r.data[column]
	return ok
}

func (r *Record) Columns() []string {
	return append([]string(nil), r.columns...)
}

func (r *Record) Len() int {
	return len(r.columns)
}

// Map 返回数据的拷贝
func (r *Record) Map() map[string]any {
	m := make(map[string]any, len(r.data))
	for k, v := range r.data {
		m[k] = v
	}
	return m
}
