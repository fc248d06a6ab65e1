// internal/models/query_types.go
package models

// QueryName identifies a catalog query. The constants are the queries the
// synthesizer has specialized prompts or deterministic formatters for.
type QueryName = string

const (
	QueryActiveCareStaysNow    QueryName = "get_active_care_stays_now"
	QueryCareStaysByDateRange  QueryName = "get_care_stays_by_date_range"
	QueryPastCareStays         QueryName = "get_past_care_stays"
	QueryCustomerHistory       QueryName = "get_customer_history"
	QueryContractTerminations  QueryName = "get_contract_terminations"
	QueryMonthlyPerformance    QueryName = "get_monthly_performance"
	QueryRevenueByAgency       QueryName = "get_revenue_by_agency"
	QueryContractsByAgency     QueryName = "get_contracts_by_agency"
	QueryActiveContracts       QueryName = "get_active_contracts"
	QueryCareGiversForCustomer QueryName = "get_care_givers_for_customer"
	QueryCustomersOnPause      QueryName = "get_customers_on_pause"
	QueryLeadConversion        QueryName = "get_cvr_lead_contract"
	QueryRecentLeads           QueryName = "get_recent_leads"
	QueryCustomerTickets       QueryName = "get_customer_tickets"
	QueryUserStatistics        QueryName = "get_user_statistics"
	QueryAgencyPerformance     QueryName = "get_agency_performance"
)
