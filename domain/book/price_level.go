package book

import "github.com/shopspring/decimal"

// PriceLevel is the FIFO queue of resting orders at one price.
// Insertion order is time priority. TotalQty tracks the aggregate
// remaining quantity across the level and is maintained incrementally
// on enqueue, fill and unlink.
type PriceLevel struct {
	Price      decimal.Decimal
	TotalQty   decimal.Decimal
	OrderCount int

	head *Order
	tail *Order
}

func newPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{Price: price, TotalQty: decimal.Zero}
}

// Head returns the earliest resting order still at the level.
func (p *PriceLevel) Head() *Order { return p.head }

// Empty reports whether no orders rest at the level.
func (p *PriceLevel) Empty() bool { return p.head == nil }

func (p *PriceLevel) enqueue(o *Order) {
	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	o.level = p
	p.TotalQty = p.TotalQty.Add(o.Remaining)
	p.OrderCount++
}

func (p *PriceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.prev = nil
	o.next = nil
	o.level = nil
	p.TotalQty = p.TotalQty.Sub(o.Remaining)
	p.OrderCount--
}

// reduce shrinks the level aggregate after a fill against one of its
// orders. The order itself is updated by the caller.
func (p *PriceLevel) reduce(qty decimal.Decimal) {
	p.TotalQty = p.TotalQty.Sub(qty)
}
