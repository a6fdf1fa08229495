package inventory

// Observer receives ledger events. The metrics registry implements it.
type Observer interface {
	StockReconciled(productID string, delta float64)
}

type noopObserver struct{}

func (noopObserver) StockReconciled(string, float64) {}
