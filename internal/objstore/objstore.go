// Package objstore читает CSV таблицы из S3-совместимого хранилища (MinIO).
package objstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrBucketNotFound — бакета нет.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrObjectNotFound — объекта нет в бакете.
	ErrObjectNotFound = errors.New("object not found")

	// ErrEmptyTable — у таблицы нет даже заголовка.
	ErrEmptyTable = errors.New("table has no header")
)

// TableSuffix — расширение объектов, которые считаются таблицами.
const TableSuffix = ".csv"

// Store — операции над хранилищем таблиц.
type Store interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	ListTables(ctx context.Context, bucket string) ([]string, error)
	TableExists(ctx context.Context, bucket, path string) (bool, error)
	Open(ctx context.Context, bucket, path string) (io.ReadCloser, error)
}

// IsTable сообщает, похож ли ключ на CSV таблицу.
func IsTable(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), TableSuffix) && !strings.HasSuffix(key, "/")
}

// ReadHeader возвращает названия колонок таблицы.
func ReadHeader(ctx context.Context, s Store, bucket, path string) ([]string, error) {
	rows, err := Head(ctx, s, bucket, path, 0)
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// Head возвращает заголовок и до n строк данных. Остаток объекта не читается.
func Head(ctx context.Context, s Store, bucket, path string, n int) ([][]string, error) {
	body, err := s.Open(ctx, bucket, path)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	r := csv.NewReader(body)
	r.FieldsPerRecord = -1

	out := make([][]string, 0, n+1)
	for len(out) < n+1 {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", bucket, path, err)
		}
		out = append(out, rec)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrEmptyTable, bucket, path)
	}
	// BOM в первой колонке ломает сопоставление имён
	out[0][0] = strings.TrimPrefix(out[0][0], "\ufeff")
	return out, nil
}
