package domain

// InventoryEntity is a stocked product as seen by the coverage store.
type InventoryEntity struct {
	ProductID   string `json:"product_id" yaml:"product_id"`
	Name        string `json:"product_name" yaml:"product_name"`
	StockLevel  int64  `json:"stock_level" yaml:"stock_level"`
	WeeklyUsage int64  `json:"weekly_usage" yaml:"weekly_usage"`
	Supplier    string `json:"supplier,omitempty" yaml:"supplier"`
	Region      string `json:"region,omitempty" yaml:"region"`
}

// WeeksCover returns stock divided by weekly usage. ok is false when usage is
// zero (or negative), meaning the cover is undefined and the item never runs out.
func (e InventoryEntity) WeeksCover() (cover float64, ok bool) {
	if e.WeeklyUsage <= 0 {
		return 0, false
	}
	return float64(e.StockLevel) / float64(e.WeeklyUsage), true
}

// AtRisk reports whether the entity has a defined cover strictly below threshold.
func (e InventoryEntity) AtRisk(threshold float64) bool {
	cover, ok := e.WeeksCover()
	if !ok {
		return false
	}
	return cover >= 0 && cover < threshold
}
