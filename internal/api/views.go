package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
)

//go:embed templates/*.html
var templateFS embed.FS

type views struct {
	tmpl *template.Template
}

func loadViews() (*views, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &views{tmpl: tmpl}, nil
}

// render buffers the page so a template error still yields a clean 500.
func (v *views) render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := v.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

type page struct {
	Title    string
	Username string
	Flashes  []string
}

type formField struct {
	Name  string
	Label string
	Value string
}

type resultView struct {
	Total          float64
	Recommendation string
	Tier           string
	Breakdown      []emissions.Contribution
}

type activityRow struct {
	Date        string
	Car         string
	Bus         string
	Flight      string
	Electricity string
	Gas         string
	Total       float64
}

type indexPage struct {
	page
	Fields []formField
	Result *resultView
	Recent []activityRow
}

var fieldLabels = map[string]string{
	emissions.CategoryCar:         "Car travel (km)",
	emissions.CategoryBus:         "Bus travel (km)",
	emissions.CategoryFlight:      "Flights (km)",
	emissions.CategoryElectricity: "Electricity (kWh)",
	emissions.CategoryGas:         "Gas (m³)",
}

func formFields(echo map[string]string) []formField {
	fields := make([]formField, 0, len(emissions.Categories))
	for _, category := range emissions.Categories {
		fields = append(fields, formField{
			Name:  category,
			Label: fieldLabels[category],
			Value: echo[category],
		})
	}
	return fields
}

func activityRows(activities []domain.Activity) []activityRow {
	rows := make([]activityRow, 0, len(activities))
	for _, a := range activities {
		rows = append(rows, activityRow{
			Date:        a.CreatedAt.UTC().Format("2006-01-02 15:04"),
			Car:         formatQuantity(a.Quantities.Car),
			Bus:         formatQuantity(a.Quantities.Bus),
			Flight:      formatQuantity(a.Quantities.Flight),
			Electricity: formatQuantity(a.Quantities.Electricity),
			Gas:         formatQuantity(a.Quantities.Gas),
			Total:       a.TotalEmission,
		})
	}
	return rows
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
