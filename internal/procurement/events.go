package procurement

import (
	"context"
	"time"
)

// ReceivedLine describes one product line brought into stock.
type ReceivedLine struct {
	ProductID string
	Qty       float64
	UnitCost  float64
}

// ReceivedEvent is emitted once the Achat movements of a received order are posted.
type ReceivedEvent struct {
	OrderID    string
	DocumentID string
	SupplierID string
	ReceivedAt time.Time
	Lines      []ReceivedLine
}

// ReceiptHandler receives procurement events for downstream integration.
type ReceiptHandler interface {
	HandleReceived(ctx context.Context, evt ReceivedEvent) error
}

func receivedEvent(o PurchaseOrder) ReceivedEvent {
	evt := ReceivedEvent{OrderID: o.ID, DocumentID: o.DocumentID, SupplierID: o.SupplierID}
	if o.ReceivedAt != nil {
		evt.ReceivedAt = *o.ReceivedAt
	}
	for _, line := range o.LineItems {
		if !line.HasProduct() {
			continue
		}
		evt.Lines = append(evt.Lines, ReceivedLine{ProductID: line.Product(), Qty: line.Quantity, UnitCost: line.UnitPrice})
	}
	return evt
}
