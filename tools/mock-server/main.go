// Package main implements a mock shop server for local development.
// It serves product pages in the markup of each supported shop so the
// static renderer and locator chains can be exercised without touching
// real marketplaces. Prices can be changed at runtime through an admin
// endpoint to drive price change notifications end to end.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

type product struct {
	ID      string       `json:"id"`
	Site    domain.Site  `json:"site"`
	Title   string       `json:"title"`
	Price   domain.Price `json:"-"`
	Display string       `json:"price"`
	InStock bool         `json:"in_stock"`
}

type catalogFile struct {
	Products []struct {
		ID      string      `json:"id"`
		Site    domain.Site `json:"site"`
		Title   string      `json:"title"`
		Price   string      `json:"price"`
		InStock bool        `json:"in_stock"`
	} `json:"products"`
}

// catalog holds the mutable product set.
type catalog struct {
	mu       sync.RWMutex
	products map[string]*product
}

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	catalogPath := flag.String("catalog", "tools/mock-server/testdata/catalog.json", "path to product catalog fixture")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cat, err := loadCatalog(*catalogPath)
	if err != nil {
		logger.Error("failed to load catalog", "path", *catalogPath, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded catalog", "products", len(cat.products))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock shop server", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, newMux(logger, cat)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newMux(logger *slog.Logger, cat *catalog) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /product/{id}", productHandler(cat))
	mux.HandleFunc("GET /admin/products", listHandler(cat))
	mux.HandleFunc("PUT /admin/products/{id}", updateHandler(logger, cat))
	return mux
}

func loadCatalog(path string) (*catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	cat := &catalog{products: make(map[string]*product, len(f.Products))}
	for _, p := range f.Products {
		if !p.Site.Valid() {
			return nil, fmt.Errorf("product %s: unknown site %q", p.ID, p.Site)
		}
		price, err := domain.ParsePrice(p.Price)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", p.ID, err)
		}
		cat.products[p.ID] = &product{
			ID:      p.ID,
			Site:    p.Site,
			Title:   p.Title,
			Price:   price,
			Display: price.String(),
			InStock: p.InStock,
		}
	}
	return cat, nil
}

func (c *catalog) get(id string) (product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return product{}, false
	}
	return *p, true
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// pageTemplate renders a product page. PriceHTML carries the shop-specific
// price markup.
var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head><title>{{.Title}}</title></head>
<body>
  <h1>{{.Title}}</h1>
  {{if .InStock}}{{.PriceHTML}}{{else}}<p class="stock">Out of stock</p>{{end}}
</body>
</html>
`))

func productHandler(cat *catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := cat.get(r.PathValue("id"))
		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		pageTemplate.Execute(w, map[string]any{
			"Title":     p.Title,
			"InStock":   p.InStock,
			"PriceHTML": priceMarkup(p),
		})
	}
}

// priceMarkup returns the price element in the layout of p.Site.
func priceMarkup(p product) template.HTML {
	switch p.Site {
	case domain.SiteWildberries:
		return template.HTML(fmt.Sprintf( //nolint:gosec // values are numeric
			`<div class="price-block"><ins class="price-block__final-price">%s&nbsp;₽</ins></div>`,
			groupThousands(p.Price)))
	case domain.SiteOzon:
		return template.HTML(fmt.Sprintf( //nolint:gosec // values are numeric
			`<div data-widget="webPrice"><span>%s&thinsp;₽</span></div>`,
			groupThousands(p.Price)))
	case domain.SiteAliExpress:
		return template.HTML(fmt.Sprintf( //nolint:gosec // values are numeric
			`<div class="product-price-current"><span>US $%s</span></div>`, p.Price))
	default:
		return template.HTML(fmt.Sprintf( //nolint:gosec // values are numeric
			`<span itemprop="price">%s</span>`, p.Price))
	}
}

// groupThousands formats the whole units of p with space separated groups,
// as marketplaces that never show kopecks do.
func groupThousands(p domain.Price) string {
	s := strconv.FormatInt(int64(p)/100, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func listHandler(cat *catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		cat.mu.RLock()
		out := make([]product, 0, len(cat.products))
		for _, p := range cat.products {
			out = append(out, *p)
		}
		cat.mu.RUnlock()
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(out)
	}
}

type updateRequest struct {
	Price   *string `json:"price"`
	InStock *bool   `json:"in_stock"`
}

func updateHandler(logger *slog.Logger, cat *catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		var price domain.Price
		if req.Price != nil {
			p, err := domain.ParsePrice(*req.Price)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			price = p
		}

		id := r.PathValue("id")
		updated, err := cat.update(id, req.Price != nil, price, req.InStock)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		logger.Info("product updated", "id", id, "price", updated.Display, "in_stock", updated.InStock)
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(updated)
	}
}

var errUnknownProduct = errors.New("unknown product")

func (c *catalog) update(id string, setPrice bool, price domain.Price, inStock *bool) (product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return product{}, errUnknownProduct
	}
	if setPrice {
		p.Price = price
		p.Display = price.String()
	}
	if inStock != nil {
		p.InStock = *inStock
	}
	return *p, nil
}
