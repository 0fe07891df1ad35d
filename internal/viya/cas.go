package viya

import (
	"context"
	"fmt"
	"net/url"
)

// Caslib is a CAS library.
type Caslib struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Scope       string `json:"scope,omitempty"`
	Type        string `json:"type,omitempty"`
	Path        string `json:"path,omitempty"`
}

// CASTable is a table within a caslib.
type CASTable struct {
	Name         string `json:"name"`
	Rows         int64  `json:"rowCount"`
	Columns      int64  `json:"columnCount"`
	State        string `json:"state,omitempty"`
	SourceTable  string `json:"sourceTableName,omitempty"`
	CreationTime string `json:"creationTimeStamp,omitempty"`
}

// CASColumn is one column of a table.
type CASColumn struct {
	Name   string `json:"name"`
	Label  string `json:"label,omitempty"`
	Type   string `json:"type"`
	Length int64  `json:"length,omitempty"`
	Format string `json:"format,omitempty"`
}

// CASRow is one row of cell values.
type CASRow struct {
	Cells []any `json:"cells"`
}

func caslibPath(server string) string {
	return "/casManagement/servers/" + url.PathEscape(server) + "/caslibs"
}

// ListCaslibs pages through a CAS server's libraries.
func (c *Client) ListCaslibs(ctx context.Context, logon *Logon, server string, start, limit int, filter string) (*Collection[Caslib], error) {
	var out Collection[Caslib]
	if err := c.get(ctx, logon, caslibPath(server), pageQuery(start, limit, filter), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCaslib fetches one library by name.
func (c *Client) GetCaslib(ctx context.Context, logon *Logon, server, caslib string) (*Caslib, error) {
	var out Caslib
	if err := c.get(ctx, logon, caslibPath(server)+"/"+url.PathEscape(caslib), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTables pages through a caslib's tables.
func (c *Client) ListTables(ctx context.Context, logon *Logon, server, caslib string, start, limit int, filter string) (*Collection[CASTable], error) {
	var out Collection[CASTable]
	p := fmt.Sprintf("%s/%s/tables", caslibPath(server), url.PathEscape(caslib))
	if err := c.get(ctx, logon, p, pageQuery(start, limit, filter), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTable fetches one table's metadata.
func (c *Client) GetTable(ctx context.Context, logon *Logon, server, caslib, table string) (*CASTable, error) {
	var out CASTable
	p := fmt.Sprintf("%s/%s/tables/%s", caslibPath(server), url.PathEscape(caslib), url.PathEscape(table))
	if err := c.get(ctx, logon, p, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListColumns fetches a table's column metadata.
func (c *Client) ListColumns(ctx context.Context, logon *Logon, server, caslib, table string, start, limit int) (*Collection[CASColumn], error) {
	var out Collection[CASColumn]
	p := fmt.Sprintf("%s/%s/tables/%s/columns", caslibPath(server), url.PathEscape(caslib), url.PathEscape(table))
	if err := c.get(ctx, logon, p, pageQuery(start, limit, ""), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReadRows fetches a page of table rows as cell arrays.
func (c *Client) ReadRows(ctx context.Context, logon *Logon, server, caslib, table string, start, limit int) (*Collection[CASRow], error) {
	var out Collection[CASRow]
	p := fmt.Sprintf("%s/%s/tables/%s/rows", caslibPath(server), url.PathEscape(caslib), url.PathEscape(table))
	if err := c.get(ctx, logon, p, pageQuery(start, limit, ""), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
