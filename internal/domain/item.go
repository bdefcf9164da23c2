package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllCategories is the synthetic category that disables category filtering.
const AllCategories = "All"

type Item struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Details  string          `json:"details"`
	ImageURL string          `json:"img_url,omitempty"`
	Reviews  []Review        `json:"reviews"`
}

type Review struct {
	Author    string    `json:"name"`
	Stars     int       `json:"stars"`
	Text      string    `json:"comment"`
	CreatedAt time.Time `json:"date"`
}

type Category struct {
	Name      string `json:"name"`
	ItemCount int    `json:"num"`
}

// Rating is the arithmetic mean of review stars. Average is 0 when Count is 0.
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
