package llmsynthesis

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"care-assistant/internal/models"
)

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", models.DateLayout}

// FormatDate renders a warehouse date as DD.MM.YYYY. Empty values are "unbekannt";
// unparseable values are returned unchanged.
func FormatDate(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "unbekannt"
	case time.Time:
		return t.Format("02.01.2006")
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return "unbekannt"
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.Format("02.01.2006")
			}
		}
		return s
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toInt(v interface{}) int {
	f, _ := toFloat(v)
	return int(math.Round(f))
}

// formatNumber uses a decimal comma and drops a zero fraction.
func formatNumber(f float64) string {
	if f == math.Trunc(f) {
		return groupThousands(int64(f))
	}
	s := strconv.FormatFloat(f, 'f', 1, 64)
	return strings.Replace(s, ".", ",", 1)
}

// formatEuro renders 1234.5 as "1.234,50 €".
func formatEuro(f float64) string {
	cents := int64(math.Round(f * 100))
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s,%02d €", sign, groupThousands(cents/100), cents%100)
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func str(row map[string]interface{}, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// FormatCustomerHistory renders the customer history rows as Markdown with
// the sections Kundenübersicht, Vertragsübersicht, Pflegeeinsätze and Zusammenfassung.
func FormatCustomerHistory(result *models.QueryResult) string {
	if result == nil || len(result.Data) == 0 {
		return "Keine Kundendaten gefunden."
	}

	var b strings.Builder
	if len(result.Data) > 1 {
		fmt.Fprintf(&b, "Es wurden %d passende Kunden gefunden.\n\n", len(result.Data))
	}
	for i, row := range result.Data {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		formatCustomer(&b, row)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCustomer(b *strings.Builder, c map[string]interface{}) {
	fmt.Fprintf(b, "# Kundenübersicht für %s\n\n", strings.TrimSpace(str(c, "first_name")+" "+str(c, "last_name")))

	agencies := str(c, "agencies")
	if agencies == "" {
		agencies = "Keine"
	}
	fmt.Fprintf(b, "**Kunde seit:** %s\n", FormatDate(c["lead_created_at"]))
	fmt.Fprintf(b, "**Anzahl Verträge:** %d\n", toInt(c["contracts_count"]))
	fmt.Fprintf(b, "**Anzahl Care Stays:** %d\n", toInt(c["care_stays_count"]))
	fmt.Fprintf(b, "**Gesamte Betreuungstage:** %d\n", toInt(c["total_care_days"]))
	fmt.Fprintf(b, "**Zusammenarbeit mit Agenturen:** %s\n\n", agencies)

	b.WriteString("## Vertragsübersicht\n")
	writeLines(b, str(c, "contracts_summary"))
	b.WriteString("## Pflegeeinsätze\n")
	writeLines(b, str(c, "care_stays_summary"))

	b.WriteString("## Zusammenfassung\n")
	fmt.Fprintf(b, "Kunde seit %s", FormatDate(c["first_contract_date"]))
	stays, days := toInt(c["care_stays_count"]), toInt(c["total_care_days"])
	if stays > 0 && days > 0 {
		fmt.Fprintf(b, " mit durchschnittlich %s Tagen pro Einsatz.\n", formatNumber(math.Round(float64(days)/float64(stays)*10)/10))
	} else {
		b.WriteString(".\n")
	}
}

func writeLines(b *strings.Builder, block string) {
	n := 0
	for _, line := range strings.Split(block, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			fmt.Fprintf(b, "- %s\n", line)
			n++
		}
	}
	if n == 0 {
		b.WriteString("- keine\n")
	}
	b.WriteString("\n")
}

// formatRow renders one record as "key: value" pairs in key order.
func formatRow(row map[string]interface{}) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, row[k]))
	}
	return strings.Join(parts, ", ")
}
