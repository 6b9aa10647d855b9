package enums

// EventType names a notification delivered to the presentation layer.
type EventType string

const (
	EventCartChanged        EventType = "cart.changed"
	EventProductAdded       EventType = "cart.product_added"
	EventProductRemoved     EventType = "cart.product_removed"
	EventCartCleared        EventType = "cart.cleared"
	EventCheckoutStep       EventType = "checkout.step_changed"
	EventCheckoutValidation EventType = "checkout.validation_failed"
	EventCheckoutClosed     EventType = "checkout.closed"
	EventOrderPlaced        EventType = "order.placed"
	EventOperationFailed    EventType = "operation.failed"
)

// String implements fmt.Stringer.
func (e EventType) String() string {
	return string(e)
}
