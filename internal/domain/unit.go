package domain

import "path"

// Unit — метаданные принятой таблицы.
//
// Запись создаётся стадией ingest-unit и дальше не меняется,
// кроме Nodes, которые дополняют стадии профилирования.
type Unit struct {
	// Name — имя таблицы без расширения.
	Name string `json:"name"`

	// Path — путь объекта внутри бакета. Ключ идемпотентности.
	Path string `json:"path"`

	Bucket      string `json:"bucket"`
	ColumnCount int    `json:"column_count"`

	// Nodes — колонка → идентификатор узла в графе связей.
	Nodes map[string]string `json:"nodes"`
}

// UnitName выводит имя таблицы из пути: "dir/orders.csv" → "orders".
func UnitName(p string) string {
	base := path.Base(p)
	if ext := path.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	return base
}

// MergeNodes добавляет ссылки, не перезаписывая существующие.
// Возвращает число добавленных.
func (u *Unit) MergeNodes(nodes map[string]string) int {
	if u.Nodes == nil {
		u.Nodes = make(map[string]string, len(nodes))
	}
	added := 0
	for col, id := range nodes {
		if _, ok := u.Nodes[col]; ok {
			continue
		}
		u.Nodes[col] = id
		added++
	}
	return added
}
