package models

import "time"

// StockReport is the daily stock snapshot pushed to the owner and archived in MongoDB.
// Money amounts are kept as fixed two-decimal strings so they survive BSON untouched.
type StockReport struct {
	Date          time.Time `bson:"date" json:"date"`
	Lots          int       `bson:"lots" json:"lots"`
	ActiveLots    int       `bson:"active_lots" json:"active_lots"`
	DepletedLots  int       `bson:"depleted_lots" json:"depleted_lots"`
	UnitsInStock  int       `bson:"units_in_stock" json:"units_in_stock"`
	StockValue    string    `bson:"stock_value" json:"stock_value"`
	SalesCount    int       `bson:"sales_count" json:"sales_count"`
	UnitsSold     int       `bson:"units_sold" json:"units_sold"`
	SalesRevenue  string    `bson:"sales_revenue" json:"sales_revenue"`
	DepletedItems []string  `bson:"depleted_items" json:"depleted_items"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}
