// internal/workers/data-access/query-warehouse/models.go
package querywarehouse

import "care-assistant/internal/models"

type Input struct {
	QueryName string                 `json:"queryName"`
	Params    map[string]interface{} `json:"params"`
	Seller    models.SellerScope     `json:"seller"`
}

type Output struct {
	models.QueryResult
	// BoundParams are the values actually sent to the warehouse, keyed by placeholder name.
	BoundParams        map[string]interface{} `json:"-"`
	QueryExecutionTime int64                  `json:"queryExecutionTime"` // milliseconds
}

// Error messages carried in QueryResult.ErrorMessage.
const (
	MsgUnknownQuery     = "unknown_query"
	MsgParameterType    = "parameter_type"
	MsgUnboundParameter = "unbound_parameter"
	MsgWarehouseError   = "warehouse_error"
)
