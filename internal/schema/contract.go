// Package schema holds the column contracts of the three raw sources and the
// fixed column order of the fact table.
package schema

// Logical field types understood by Coerce and the warehouse DDL inference.
const (
	TypeText    = "text"
	TypeInt     = "int"
	TypeDecimal = "decimal"
	TypeDate    = "date"
)

// Field describes one column of a source. A Required column must be present
// in the header; a Nullable one may still hold empty cells, which become NULL.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // "text" | "int" | "decimal" | "date"
	Required bool   `json:"required,omitempty"`
	Nullable bool   `json:"nullable,omitempty"`
}

// Contract lists the columns a named source must carry. Key names the
// identity column, if any.
type Contract struct {
	Name   string  `json:"name"`
	Key    string  `json:"key,omitempty"`
	Fields []Field `json:"fields"`
}

// Required returns the names of the required fields, in contract order.
func (c Contract) Required() []string {
	out := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Types maps field name to logical type.
func (c Contract) Types() map[string]string {
	m := make(map[string]string, len(c.Fields))
	for _, f := range c.Fields {
		m[f.Name] = f.Type
	}
	return m
}

// Source names.
const (
	Sales     = "sales_data"
	Products  = "products"
	Customers = "customers"
)

// SalesContract describes the transaction source. payment_method is read from
// the customers source, never from sales.
var SalesContract = Contract{
	Name: Sales,
	Key:  "order_id",
	Fields: []Field{
		{Name: "order_id", Type: TypeText, Required: true},
		{Name: "customer_id", Type: TypeText, Required: true},
		{Name: "product_id", Type: TypeText, Required: true},
		{Name: "order_date", Type: TypeDate, Required: true},
		{Name: "quantity", Type: TypeInt, Required: true},
		{Name: "unit_price", Type: TypeDecimal, Required: true},
	},
}

var ProductsContract = Contract{
	Name: Products,
	Key:  "product_id",
	Fields: []Field{
		{Name: "product_id", Type: TypeText, Required: true},
		{Name: "product_name", Type: TypeText, Required: true, Nullable: true},
		{Name: "category", Type: TypeText, Required: true, Nullable: true},
		{Name: "brand", Type: TypeText, Required: true, Nullable: true},
		{Name: "cost_price", Type: TypeDecimal, Required: true},
	},
}

var CustomersContract = Contract{
	Name: Customers,
	Key:  "customer_id",
	Fields: []Field{
		{Name: "customer_id", Type: TypeText, Required: true},
		{Name: "first_name", Type: TypeText, Required: true, Nullable: true},
		{Name: "last_name", Type: TypeText, Required: true, Nullable: true},
		{Name: "customer_segment", Type: TypeText, Required: true, Nullable: true},
		{Name: "shipping_city", Type: TypeText, Required: true, Nullable: true},
		{Name: "shipping_country", Type: TypeText, Required: true, Nullable: true},
		{Name: "payment_method", Type: TypeText, Required: true, Nullable: true},
	},
}

// FactColumns is the column order of the fact table. Consumers rely on it.
var FactColumns = []string{
	"order_id",
	"order_date",
	"order_year",
	"order_month",
	"day_of_week",
	"customer_id",
	"first_name",
	"last_name",
	"customer_segment",
	"product_id",
	"product_name",
	"category",
	"brand",
	"quantity",
	"unit_price",
	"cost_price",
	"total_amount",
	"profit",
	"profit_margin",
	"shipping_city",
	"shipping_country",
	"payment_method",
	"high_value_order",
}
