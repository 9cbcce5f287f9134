package rdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// TableModel 表结构定义，用于建表
type TableModel struct {
	Table      string
	Fields     []FieldDefinition
	PrimaryKey []string
}

// FieldDefinition 字段定义
type FieldDefinition struct {
	Name          string
	Type          FieldType
	Required      bool
	Default       any
	Size          int
	AutoIncrement bool
}

// FieldType 字段类型
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeInt    FieldType = "int"
	FieldTypeFloat  FieldType = "float"
	FieldTypeBool   FieldType = "bool"
	FieldTypeDate   FieldType = "date"
	FieldTypeJSON   FieldType = "json"
)

// Migrate 建表，表已存在时不做任何事
func (s *SQL) Migrate(ctx context.Context, model *TableModel) error {
	if model == nil || model.Table == "" {
		return errors.New("table model is empty")
	}
	_, err := s.Exec(ctx, s.buildCreateTableSQL(model))
	return errors.WithMessagef(err, "create table %s failed", model.Table)
}

func (s *SQL) DropTable(ctx context.Context, table string) error {
	_, err := s.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.QuoteIdentifier(table)))
	return err
}

func (s *SQL) buildCreateTableSQL(model *TableModel) string {
	var defs []string
	inlinePK := false
	for _, field := range model.Fields {
		def := s.buildColumnDefinition(field)
		// sqlite 的自增列必须写成 INTEGER PRIMARY KEY
		if field.AutoIncrement && len(model.PrimaryKey) == 1 && model.PrimaryKey[0] == field.Name {
			switch s.driver {
			case DriverSQLite3:
				def = s.QuoteIdentifier(field.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
				inlinePK = true
			case DriverPostgres:
				def = s.QuoteIdentifier(field.Name) + " BIGSERIAL"
			case DriverMySQL:
				def += " AUTO_INCREMENT"
			}
		}
		defs = append(defs, def)
	}

	if len(model.PrimaryKey) > 0 && !inlinePK {
		quoted := make([]string, len(model.PrimaryKey))
		for i, pk := range model.PrimaryKey {
			quoted[i] = s.QuoteIdentifier(pk)
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", s.QuoteIdentifier(model.Table), strings.Join(defs, ",\n  "))
}

func (s *SQL) buildColumnDefinition(field FieldDefinition) string {
	parts := []string{s.QuoteIdentifier(field.Name), s.mapFieldTypeToSQL(field.Type, field.Size)}
	if field.Required {
		parts = append(parts, "NOT NULL")
	}
	if field.Default != nil {
		parts = append(parts, "DEFAULT "+formatDefaultValue(field.Default))
	}
	return strings.Join(parts, " ")
}

func (s *SQL) mapFieldTypeToSQL(fieldType FieldType, size int) string {
	sqlite := s.driver == DriverSQLite3
	switch fieldType {
	case FieldTypeInt:
		if sqlite {
			return "INTEGER"
		}
		return "BIGINT"
	case FieldTypeFloat:
		if sqlite {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case FieldTypeBool:
		if sqlite {
			return "INTEGER"
		}
		return "BOOLEAN"
	case FieldTypeDate:
		switch s.driver {
		case DriverSQLite3:
			return "DATETIME"
		case DriverPostgres:
			return "TIMESTAMP"
		}
		return "DATETIME"
	case FieldTypeJSON:
		switch s.driver {
		case DriverMySQL:
			return "JSON"
		case DriverPostgres:
			return "JSONB"
		}
		return "TEXT"
	}
	if sqlite {
		return "TEXT"
	}
	if size <= 0 {
		size = 255
	}
	return fmt.Sprintf("VARCHAR(%d)", size)
}

func formatDefaultValue(value any) string {
	switch v := value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "1"
		}
		return "0"
	}
	return fmt.Sprintf("%v", value)
}
