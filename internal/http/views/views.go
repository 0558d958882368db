package views

import (
	"embed"
	"fmt"
	"html/template"

	"github.com/iyhunko/dapp-marketplace/internal/model"
)

// IndexPage is the name of the marketplace page template.
const IndexPage = "index.tmpl"

//go:embed templates/*.tmpl
var templates embed.FS

// Page is the data rendered by the index template.
type Page struct {
	Account  string
	Flashes  []any
	Draft    model.Draft
	Loading  bool
	Products []model.Product
}

// FuncMap holds the helpers available to every template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"shortAddress": model.ShortAddress,
		"ownerLabel":   OwnerLabel,
	}
}

// Load parses the embedded templates.
func Load() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(FuncMap()).ParseFS(templates, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

// OwnerLabel shows "You" for products owned by the connected account.
func OwnerLabel(p model.Product, account string) string {
	if p.OwnedBy(account) {
		return "You"
	}
	return p.Owner
}
