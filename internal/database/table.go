package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	http "github.com/bogdanfinn/fhttp"
)

const (
	preferRepresentation = "return=representation"
	preferMinimal        = "return=minimal"
)

// Table is a typed handle on one backend table. R is the row shape, I and U
// the insert and update shapes. Every row is identified by an integer "id".
type Table[R, I, U any] struct {
	client *Client
	name   string
}

func From[R, I, U any](c *Client, name string) *Table[R, I, U] {
	return &Table[R, I, U]{client: c, name: name}
}

func (t *Table[R, I, U]) Name() string {
	return t.name
}

func (t *Table[R, I, U]) Select(ctx context.Context, q Query) ([]R, error) {
	raw, err := t.client.do(ctx, http.MethodGet, t.name, q.Values(), nil, "")
	if err != nil {
		return nil, err
	}
	return t.decodeRows(raw)
}

// Insert stores row and returns it as the backend saved it, with id and
// created_at filled in.
func (t *Table[R, I, U]) Insert(ctx context.Context, row I) (R, error) {
	var zero R
	raw, err := t.client.do(ctx, http.MethodPost, t.name, nil, []I{row}, preferRepresentation)
	if err != nil {
		return zero, err
	}
	rows, err := t.decodeRows(raw)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("insert into %s: %w", t.name, ErrNotFound)
	}
	return rows[0], nil
}

func (t *Table[R, I, U]) Update(ctx context.Context, id int64, patch U) (R, error) {
	var zero R
	raw, err := t.client.do(ctx, http.MethodPatch, t.name, byID(id), patch, preferRepresentation)
	if err != nil {
		return zero, err
	}
	rows, err := t.decodeRows(raw)
	if err != nil {
		return zero, err
	}
	if len(rows) != 1 {
		return zero, fmt.Errorf("update %s id %d: %w", t.name, id, ErrNotFound)
	}
	return rows[0], nil
}

func (t *Table[R, I, U]) Delete(ctx context.Context, id int64) error {
	_, err := t.client.do(ctx, http.MethodDelete, t.name, byID(id), nil, "")
	return err
}

// UpdateIn applies patch to every row whose id is in ids, in one request.
func (t *Table[R, I, U]) UpdateIn(ctx context.Context, ids []int64, patch U) error {
	q := Query{Filters: []Filter{In("id", ids)}}.Values()
	q.Del("select")
	_, err := t.client.do(ctx, http.MethodPatch, t.name, q, patch, preferMinimal)
	return err
}

func (t *Table[R, I, U]) decodeRows(raw []byte) ([]R, error) {
	var rows []R
	if len(raw) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", t.name, err)
	}
	return rows, nil
}

func byID(id int64) url.Values {
	v := url.Values{}
	v.Set("id", fmt.Sprintf("%s.%d", OpEq, id))
	return v
}
