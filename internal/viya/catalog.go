package viya

import (
	"context"
)

// CatalogAsset is one hit from a catalog search.
type CatalogAsset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	URI         string `json:"uri,omitempty"`
	ModifiedAt  string `json:"modifiedTimeStamp,omitempty"`
}

// SearchCatalog queries the information catalog for assets matching q.
func (c *Client) SearchCatalog(ctx context.Context, logon *Logon, q string, start, limit int) (*Collection[CatalogAsset], error) {
	query := pageQuery(start, limit, "")
	query.Set("q", q)
	var out Collection[CatalogAsset]
	if err := c.get(ctx, logon, "/catalog/search", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
