package upstream

import (
	"context"
	"net/url"
	"strconv"
)

// Category is a marketplace template category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Template is a marketplace listing. Price is the tax-inclusive amount in
// minor units as priced by the marketplace.
type Template struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Free        bool     `json:"is_free"`
	Category    string   `json:"category"`
	Rating      float64  `json:"rating"`
	Downloads   int      `json:"downloads"`
	PreviewURL  string   `json:"preview_url"`
	Tags        []string `json:"tags"`
	SellerName  string   `json:"seller_name"`
}

// TemplateList is a paginated listing response.
type TemplateList struct {
	Items []Template `json:"items"`
	Total int        `json:"total"`
}

// TemplateQuery carries the supported listing filters. Zero values are
// omitted from the outgoing query string.
type TemplateQuery struct {
	Search    string
	Category  string
	SortBy    string
	MinPrice  int64
	MaxPrice  int64
	MinRating float64
	FreeOnly  bool
	Limit     int
	Offset    int
}

// Values encodes the query into upstream request parameters.
func (q TemplateQuery) Values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.SortBy != "" {
		v.Set("sort_by", q.SortBy)
	}
	if q.MinPrice > 0 {
		v.Set("min_price", strconv.FormatInt(q.MinPrice, 10))
	}
	if q.MaxPrice > 0 {
		v.Set("max_price", strconv.FormatInt(q.MaxPrice, 10))
	}
	if q.MinRating > 0 {
		v.Set("min_rating", strconv.FormatFloat(q.MinRating, 'f', -1, 64))
	}
	if q.FreeOnly {
		v.Set("free_only", "true")
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// Categories lists all template categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.get(ctx, "catalog", "/categories", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Templates lists templates with search, filter and pagination parameters.
func (c *Client) Templates(ctx context.Context, q TemplateQuery) (TemplateList, error) {
	var out TemplateList
	if err := c.get(ctx, "catalog", "/templates", q.Values(), "", &out); err != nil {
		return TemplateList{}, err
	}
	return out, nil
}

// Template fetches a single listing by id.
func (c *Client) Template(ctx context.Context, id string) (Template, error) {
	var out Template
	if err := c.get(ctx, "catalog", "/templates/"+url.PathEscape(id), nil, "", &out); err != nil {
		return Template{}, err
	}
	return out, nil
}

// Trending lists the currently trending templates.
func (c *Client) Trending(ctx context.Context) ([]Template, error) {
	var out []Template
	if err := c.get(ctx, "catalog", "/templates/trending", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Purchase is a completed order as reported by the marketplace, used for
// invoice generation.
type Purchase struct {
	ID           string `json:"id"`
	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_name"`
	PurchasedAt  string `json:"purchased_at"`
	Price        int64  `json:"price"`
}

// PurchaseByID fetches a purchase belonging to the authenticated user.
func (c *Client) PurchaseByID(ctx context.Context, token, purchaseID string) (Purchase, error) {
	var out Purchase
	if err := c.get(ctx, "orders", "/purchases/"+url.PathEscape(purchaseID), nil, token, &out); err != nil {
		return Purchase{}, err
	}
	return out, nil
}
