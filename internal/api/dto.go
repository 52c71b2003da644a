package api

import (
	"github.com/shaiso/tabledisco/internal/domain"
)

// TableRequest — тело POST /tables/ingest и /tables/profile.
type TableRequest struct {
	Bucket    string `json:"bucket"`
	TablePath string `json:"table_path"`
}

// Validate проверяет обязательные поля.
func (r TableRequest) Validate() string {
	switch {
	case r.Bucket == "":
		return "bucket is required"
	case r.TablePath == "":
		return "table_path is required"
	}
	return ""
}

// UnitResponse — принятая таблица.
type UnitResponse struct {
	Name        string            `json:"name"`
	Path        string            `json:"path"`
	Bucket      string            `json:"bucket"`
	ColumnCount int               `json:"column_count"`
	Nodes       map[string]string `json:"nodes"`
}

// UnitFromDomain конвертирует domain.Unit в UnitResponse.
func UnitFromDomain(u domain.Unit) UnitResponse {
	nodes := u.Nodes
	if nodes == nil {
		nodes = map[string]string{}
	}
	return UnitResponse{
		Name:        u.Name,
		Path:        u.Path,
		Bucket:      u.Bucket,
		ColumnCount: u.ColumnCount,
		Nodes:       nodes,
	}
}

// PurgeResponse — ответ POST /purge.
type PurgeResponse struct {
	Purged bool `json:"purged"`
}
