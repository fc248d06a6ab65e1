package llmsynthesis

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"care-assistant/internal/models"
)

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{in: "2025-05-03", want: "03.05.2025"},
		{in: "2025-05-03T08:00:00Z", want: "03.05.2025"},
		{in: "2025-05-03 08:00:00", want: "03.05.2025"},
		{in: time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC), want: "24.12.2024"},
		{in: nil, want: "unbekannt"},
		{in: "  ", want: "unbekannt"},
		{in: "Ende Mai", want: "Ende Mai"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDate(tt.in), "%v", tt.in)
	}
}

func TestFormatNumbers(t *testing.T) {
	assert.Equal(t, "1.234,50 €", formatEuro(1234.5))
	assert.Equal(t, "0,00 €", formatEuro(0))
	assert.Equal(t, "-12,30 €", formatEuro(-12.3))
	assert.Equal(t, "1.000.000", formatNumber(1e6))
	assert.Equal(t, "12,5", formatNumber(12.5))
	assert.Equal(t, 3, toInt("2.6"))
}

// ==========================
// Customer History Tests
// ==========================

func TestFormatCustomerHistory(t *testing.T) {
	out := FormatCustomerHistory(&models.QueryResult{Status: models.QueryStatusSuccess, Count: 1, Data: []map[string]interface{}{{
		"first_name":          "Erika",
		"last_name":           "Küll",
		"lead_created_at":     "2023-11-02",
		"contracts_count":     int64(2),
		"care_stays_count":    int64(4),
		"total_care_days":     int64(150),
		"agencies":            "Senioport, Promedica",
		"first_contract_date": "2024-01-10",
		"contracts_summary":   "Senioport seit 10.01.2024 (beendet)\nPromedica seit 01.08.2024 (aktiv)",
		"care_stays_summary":  "",
	}}})

	assert.True(t, strings.HasPrefix(out, "# Kundenübersicht für Erika Küll"))
	assert.Contains(t, out, "**Kunde seit:** 02.11.2023")
	assert.Contains(t, out, "**Anzahl Care Stays:** 4")
	assert.Contains(t, out, "**Zusammenarbeit mit Agenturen:** Senioport, Promedica")
	assert.Contains(t, out, "## Vertragsübersicht\n- Senioport seit 10.01.2024 (beendet)\n- Promedica seit 01.08.2024 (aktiv)")
	assert.Contains(t, out, "## Pflegeeinsätze\n- keine")
	assert.True(t, strings.HasSuffix(out, "Kunde seit 10.01.2024 mit durchschnittlich 37,5 Tagen pro Einsatz."))
}

func TestFormatCustomerHistory_SeveralMatches(t *testing.T) {
	out := FormatCustomerHistory(&models.QueryResult{Status: models.QueryStatusSuccess, Count: 2, Data: []map[string]interface{}{
		{"first_name": "Erika", "last_name": "Küll"},
		{"first_name": "Hans", "last_name": "Küll"},
	}})

	assert.True(t, strings.HasPrefix(out, "Es wurden 2 passende Kunden gefunden."))
	assert.Contains(t, out, "\n---\n")
	assert.Contains(t, out, "# Kundenübersicht für Hans Küll")
	assert.Contains(t, out, "**Zusammenarbeit mit Agenturen:** Keine")
	assert.Equal(t, "Keine Kundendaten gefunden.", FormatCustomerHistory(nil))
}

// ==========================
// Summary Tests
// ==========================

func success(rows ...map[string]interface{}) *models.QueryResult {
	return &models.QueryResult{Status: models.QueryStatusSuccess, Data: rows, Count: len(rows)}
}

func TestSummarize(t *testing.T) {
	may := map[string]interface{}{"start_date": "2025-05-01", "end_date": "2025-05-31"}

	tests := []struct {
		name string
		in   *Input
		want string
	}{
		{
			name: "terminations",
			in: &Input{QueryName: models.QueryContractTerminations, Params: may,
				Result: success(map[string]interface{}{"serious_terminations": 3, "agency_switches": 1})},
			want: "Vom 01.05.2025 bis 31.05.2025 gab es 3 ernsthafte Kündigungen und 1 Agenturwechsel.",
		},
		{
			name: "conversion without rate",
			in: &Input{QueryName: models.QueryLeadConversion, Params: may,
				Result: success(map[string]interface{}{"net_leads": 40, "contracts": 10})},
			want: "Ihre Abschlussquote vom 01.05.2025 bis 31.05.2025 liegt bei 25 % (10 Verträge aus 40 Netto-Leads).",
		},
		{
			name: "revenue without dates",
			in: &Input{QueryName: models.QueryRevenueByAgency,
				Result: success(map[string]interface{}{"agency_name": "Senioport", "revenue": "1500.5", "care_stays": 2})},
			want: "Im gewählten Zeitraum: Gesamtumsatz 1.500,50 € über 1 Agenturen.\n\n- Senioport: 1.500,50 € (2 Care Stays)",
		},
		{
			name: "unknown query uses template",
			in: &Input{QueryName: "get_user_statistics",
				Result: success(map[string]interface{}{"b": 2, "a": 1})},
			want: "Es wurden 1 Datensätze gefunden. Beispiele:\n- a: 1, b: 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.in))
		})
	}
}
