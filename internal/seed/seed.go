// Package seed holds the sample legal publications loaded by cmd/seed and by the
// in-memory store at startup.
package seed

import (
	"context"
	"fmt"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"regexp"
	"strings"
)

type Upserter interface {
	UpsertProduct(ctx context.Context, p *orders.Product) error
}

// Product ids are derived from the slug so reseeding keeps them stable.
var namespace = uuid.MustParse("6f1d2c3e-8a4b-4c55-9e0f-1b2a3c4d5e6f")

type book struct {
	title      string
	author     string
	original   int64
	discounted int64 // 0 = no discount
	stock      int
}

var books = []book{
	{"The Bharatiya Nyaya Samhita, 2023 (ALA/Bare Act)", "Dr. R.K. Bangia", 295, 250, 40},
	{"The Bharatiya Sakshya Adhiniyam, 2023 (ALA/Bare Act)", "Dr. R.K. Bangia", 245, 0, 35},
	{"The Protection of Women from Domestic Violence Act, 2005 (ALA/Bare Act)", "Legal Experts", 210, 0, 18},
	{"The Sexual Harassment of Women at Workplace Act, 2013 (ALA/Bare Act)", "Legal Experts", 225, 190, 22},
	{"Modern Hindu Law", "Dr. R.K. Bangia", 495, 420, 30},
	{"The Law of Torts", "Dr. R.K. Bangia", 450, 0, 27},
	{"Jurisprudence and Legal Theory", "V.D. Mahajan", 650, 552, 15},
	{"Indian Penal Code", "K.D. Gaur", 595, 0, 12},
	{"Code of Civil Procedure", "C.K. Takwani", 625, 531, 14},
	{"Code of Criminal Procedure", "K.N. Chandrasekharan Pillai", 575, 0, 10},
	{"Constitutional Law of India", "J.N. Pandey", 540, 459, 45},
	{"Law of Contracts", "Avtar Singh", 510, 0, 1},
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(title string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

func Products() []orders.Product {
	out := make([]orders.Product, 0, len(books))
	for i, b := range books {
		slug := Slugify(b.title)
		p := orders.Product{
			ID:          uuid.NewSHA1(namespace, []byte(slug)).String(),
			Title:       b.title,
			Slug:        slug,
			Description: fmt.Sprintf("Comprehensive guide to %s, with commentary for practitioners and students.", b.title),
			Author:      b.author,
			Publisher:   "Allahabad Law Agency",
			Edition:     "2024 Edition",
			ISBN:        fmt.Sprintf("978-81-7012-%03d-%d", 100+i, i%10),
			Price:       orders.Price{Original: decimal.NewFromInt(b.original), Currency: orders.DefaultCurrency},
			Stock:       b.stock,
		}
		if b.discounted > 0 {
			d := decimal.NewFromInt(b.discounted)
			p.Price.Discounted = &d
		}
		out = append(out, p)
	}
	return out
}

// Load upserts every sample product and returns how many were written.
func Load(ctx context.Context, u Upserter) (int, error) {
	n := 0
	for _, p := range Products() {
		if err := u.UpsertProduct(ctx, &p); err != nil {
			return n, fmt.Errorf("seed %s: %w", p.Slug, err)
		}
		n++
	}
	return n, nil
}
