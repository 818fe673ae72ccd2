package kml

import (
	"math"
	"strconv"
	"strings"

	"github.com/chrissnell/flightkml/internal/aircraft"
)

const (
	notAvailable = "N/A"
	unknownType  = "Desconhecido"
)

// Describe renders the multi-line description for a fix using its schema's template.
func Describe(fix aircraft.Fix) string {
	var lines []string

	switch fix.Schema {
	case aircraft.SchemaStates:
		lines = []string{
			line("ICAO24", textOr(fix.ID, notAvailable)),
			line("País de origem", textOr(fix.OriginCountry, notAvailable)),
			line("Altitude", measure(fix.Altitude, 0, " m")),
			line("Velocidade", measure(fix.Speed, 1, " m/s")),
			line("Rumo", measure(fix.Heading, 1, "°")),
			line("Taxa vertical", measure(fix.VerticalRate, 1, " m/s")),
			line("No solo", yesNo(fix.OnGround)),
			line("Squawk", textOr(fix.Squawk, notAvailable)),
			line("Categoria", textOr(fix.Category, notAvailable)),
		}
	default:
		lines = []string{
			line("Tipo", textOr(fix.AircraftType, unknownType)),
			line("Altitude", measure(fix.Altitude, 0, " ft")),
			line("Velocidade", measure(fix.Speed, 0, " kt")),
			line("Proa", measure(fix.Heading, 0, "°")),
		}
	}

	return strings.Join(lines, "\n")
}

func line(label, value string) string {
	return label + ": " + value
}

func textOr(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

// measure formats v with a fixed number of decimals and appends unit, or N/A.
func measure(v *float64, decimals int, unit string) string {
	if v == nil {
		return notAvailable
	}
	scale := math.Pow(10, float64(decimals))
	rounded := math.Round(*v*scale) / scale
	if rounded == 0 {
		rounded = 0
	}
	return strconv.FormatFloat(rounded, 'f', decimals, 64) + unit
}

func yesNo(b *bool) string {
	switch {
	case b == nil:
		return notAvailable
	case *b:
		return "Sim"
	default:
		return "Não"
	}
}
