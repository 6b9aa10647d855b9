package enums

// OrderStatus tracks the lifecycle of a placed order. Only confirmation is modeled.
type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
)

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}
