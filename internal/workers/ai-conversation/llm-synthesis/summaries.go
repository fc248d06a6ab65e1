package llmsynthesis

import (
	"fmt"
	"strings"

	"care-assistant/internal/models"
)

const maxSummaryItems = 5

type summarizer func(in *Input) string

// summaries hold the deterministic German answers used when the model is unavailable.
var summaries = map[string]summarizer{
	models.QueryActiveCareStaysNow: func(in *Input) string {
		return listSummary(in, fmt.Sprintf("Sie haben aktuell %d aktive Care Stays.", in.Result.Count), func(r map[string]interface{}) string {
			return fmt.Sprintf("%s (%s), bis %s", str(r, "customer_name"), str(r, "agency_name"), FormatDate(r["departure"]))
		})
	},
	models.QueryCareStaysByDateRange: func(in *Input) string {
		return listSummary(in, fmt.Sprintf("%s gab es %d Care Stays.", capitalize(period(in.Params)), in.Result.Count), careStayLine)
	},
	models.QueryPastCareStays: func(in *Input) string {
		return listSummary(in, fmt.Sprintf("Es wurden %d beendete Care Stays gefunden.", in.Result.Count), careStayLine)
	},
	models.QueryActiveContracts: func(in *Input) string {
		return listSummary(in, fmt.Sprintf("Sie haben %d aktive Verträge.", in.Result.Count), contractLine)
	},
	models.QueryContractsByAgency: func(in *Input) string {
		agency := str(in.Params, "agency_name")
		return listSummary(in, fmt.Sprintf("Es wurden %d Verträge mit %s gefunden.", in.Result.Count, agency), contractLine)
	},
	models.QueryRecentLeads: func(in *Input) string {
		return listSummary(in, fmt.Sprintf("%s sind %d Leads eingegangen.", capitalize(period(in.Params)), in.Result.Count), func(r map[string]interface{}) string {
			return fmt.Sprintf("%s (%s), %s", str(r, "lead_name"), str(r, "status"), FormatDate(r["created_at"]))
		})
	},
	models.QueryCareGiversForCustomer: func(in *Input) string {
		return listSummary(in, fmt.Sprintf("Bei %s waren %d Betreuungseinsätze.", str(in.Params, "customer_name"), in.Result.Count), func(r map[string]interface{}) string {
			return fmt.Sprintf("%s (%s), %s bis %s", str(r, "caregiver_name"), str(r, "agency_name"), FormatDate(r["arrival"]), FormatDate(r["departure"]))
		})
	},
	models.QueryCustomerTickets: func(in *Input) string {
		return listSummary(in, fmt.Sprintf("Es wurden %d Tickets zu %s gefunden.", in.Result.Count, str(in.Params, "customer_name")), func(r map[string]interface{}) string {
			return fmt.Sprintf("%s: %s (%s, %s)", FormatDate(r["created_at"]), str(r, "subject"), str(r, "status"), str(r, "channel"))
		})
	},
	models.QueryCustomersOnPause: func(in *Input) string {
		return listSummary(in, fmt.Sprintf("%d Kunden sind aktuell in Pause (aktiver Vertrag ohne laufenden Care Stay).", in.Result.Count), func(r map[string]interface{}) string {
			return fmt.Sprintf("%s (%s), seit %d Tagen", str(r, "customer_name"), str(r, "agency_name"), toInt(r["days_since_last_stay"]))
		})
	},
	models.QueryMonthlyPerformance: func(in *Input) string {
		var stays, revenue float64
		for _, r := range in.Result.Data {
			s, _ := toFloat(r["care_stays"])
			v, _ := toFloat(r["revenue"])
			stays += s
			revenue += v
		}
		head := fmt.Sprintf("%s: %s Care Stays mit einem Umsatz von %s.", capitalize(period(in.Params)), formatNumber(stays), formatEuro(revenue))
		return listSummary(in, head, func(r map[string]interface{}) string {
			v, _ := toFloat(r["revenue"])
			return fmt.Sprintf("%s: %s", str(r, "customer_name"), formatEuro(v))
		})
	},
	models.QueryRevenueByAgency: func(in *Input) string {
		var revenue float64
		for _, r := range in.Result.Data {
			v, _ := toFloat(r["revenue"])
			revenue += v
		}
		head := fmt.Sprintf("%s: Gesamtumsatz %s über %d Agenturen.", capitalize(period(in.Params)), formatEuro(revenue), in.Result.Count)
		return listSummary(in, head, func(r map[string]interface{}) string {
			v, _ := toFloat(r["revenue"])
			return fmt.Sprintf("%s: %s (%d Care Stays)", str(r, "agency_name"), formatEuro(v), toInt(r["care_stays"]))
		})
	},
	models.QueryContractTerminations: func(in *Input) string {
		r := in.Result.Data[0]
		serious, switches := toInt(r["serious_terminations"]), toInt(r["agency_switches"])
		s := fmt.Sprintf("%s gab es %d ernsthafte Kündigungen und %d Agenturwechsel.", capitalize(period(in.Params)), serious, switches)
		if ex := str(r, "examples"); ex != "" {
			s += "\n\nBeispiele: " + ex
		}
		return s
	},
	models.QueryLeadConversion: func(in *Input) string {
		r := in.Result.Data[0]
		leads, contracts := toInt(r["net_leads"]), toInt(r["contracts"])
		rate, ok := toFloat(r["conversion_rate"])
		if !ok && leads > 0 {
			rate = float64(contracts) / float64(leads) * 100
		}
		return fmt.Sprintf("Ihre Abschlussquote %s liegt bei %s %% (%d Verträge aus %d Netto-Leads).",
			period(in.Params), formatNumber(rate), contracts, leads)
	},
}

func careStayLine(r map[string]interface{}) string {
	return fmt.Sprintf("%s (%s), %s bis %s", str(r, "customer_name"), str(r, "agency_name"), FormatDate(r["arrival"]), FormatDate(r["departure"]))
}

func contractLine(r map[string]interface{}) string {
	line := fmt.Sprintf("%s, seit %s", str(r, "customer_name"), FormatDate(r["start_date"]))
	if a := str(r, "agency_name"); a != "" {
		line += " (" + a + ")"
	}
	if s := str(r, "status"); s != "" {
		line += ", " + s
	}
	return line
}

func listSummary(in *Input, head string, line func(map[string]interface{}) string) string {
	var b strings.Builder
	b.WriteString(head)
	n := len(in.Result.Data)
	if n > maxSummaryItems {
		n = maxSummaryItems
	}
	if n > 0 {
		b.WriteString("\n")
	}
	for _, r := range in.Result.Data[:n] {
		b.WriteString("\n- " + line(r))
	}
	if in.Result.Count > n && n > 0 {
		fmt.Fprintf(&b, "\n\n… und %d weitere.", in.Result.Count-n)
	}
	return b.String()
}

// period renders the bound date range, e.g. "vom 01.05.2025 bis 31.05.2025".
func period(params map[string]interface{}) string {
	start, end := params["start_date"], params["end_date"]
	if models.IsEmptyValue(start) || models.IsEmptyValue(end) {
		return "im gewählten Zeitraum"
	}
	return fmt.Sprintf("vom %s bis %s", FormatDate(start), FormatDate(end))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// templateSummary is the last resort for any query: the count and up to three rows.
func templateSummary(result *models.QueryResult) string {
	n := len(result.Data)
	if n > 3 {
		n = 3
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Es wurden %d Datensätze gefunden.", result.Count)
	if n > 0 {
		b.WriteString(" Beispiele:")
		for _, r := range result.Data[:n] {
			b.WriteString("\n- " + formatRow(r))
		}
	}
	return b.String()
}

// Summarize returns the deterministic answer for a successful, non-empty result.
func Summarize(in *Input) string {
	if fn, ok := summaries[in.QueryName]; ok && len(in.Result.Data) > 0 {
		return fn(in)
	}
	return templateSummary(in.Result)
}
