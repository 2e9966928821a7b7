package allocation

import (
	"fmt"

	"github.com/satheeshds/receivables/models"
)

// Line is the amount a plan applies to one target.
type Line struct {
	Target
	Amount models.Money `json:"amount"`
}

// Remaining is what the target will still owe after this line.
func (l Line) Remaining() models.Money {
	return l.Outstanding - l.Amount
}

// Plan distributes a payment across a customer's targets. It holds one line
// per target, in settlement order, including lines that receive nothing.
type Plan struct {
	Lines []Line `json:"lines"`
}

// NewPlan returns an empty plan over targets in settlement order.
func NewPlan(targets []Target) *Plan {
	sorted := Order(targets)
	p := &Plan{Lines: make([]Line, 0, len(sorted))}
	for _, t := range sorted {
		if t.Outstanding <= 0 {
			continue
		}
		p.Lines = append(p.Lines, Line{Target: t})
	}
	return p
}

// FIFO allocates amount oldest obligation first.
func FIFO(amount models.Money, targets []Target) (*Plan, error) {
	p := NewPlan(targets)
	if err := p.Reset(amount); err != nil {
		return nil, err
	}
	return p, nil
}

// Override is a manually chosen amount for one target.
type Override struct {
	Key    string       `json:"key"`
	Amount models.Money `json:"amount"`
}

// Manual builds a plan from explicit per-target amounts and checks it
// against the payment amount.
func Manual(amount models.Money, targets []Target, overrides []Override) (*Plan, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: payment %s", ErrNegativeAmount, amount)
	}
	p := NewPlan(targets)
	seen := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		if seen[o.Key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTarget, o.Key)
		}
		seen[o.Key] = true
		if err := p.Set(o.Key, o.Amount); err != nil {
			return nil, err
		}
	}
	if err := p.Check(amount); err != nil {
		return nil, err
	}
	return p, nil
}

// Reset discards manual edits and redistributes amount with FIFO.
func (p *Plan) Reset(amount models.Money) error {
	if amount < 0 {
		return fmt.Errorf("%w: payment %s", ErrNegativeAmount, amount)
	}
	if outstanding := p.Outstanding(); amount > outstanding {
		return fmt.Errorf("%w: payment %s, outstanding %s", ErrExceedsOutstanding, amount, outstanding)
	}
	remaining := amount
	for i := range p.Lines {
		take := models.MinMoney(p.Lines[i].Outstanding, remaining)
		p.Lines[i].Amount = take
		remaining -= take
	}
	return nil
}

// Set changes one line and leaves every other line as it was.
func (p *Plan) Set(key string, amount models.Money) error {
	line := p.line(key)
	if line == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, key)
	}
	if amount < 0 {
		return fmt.Errorf("%w: %s set to %s", ErrNegativeAmount, key, amount)
	}
	if amount > line.Outstanding {
		return fmt.Errorf("%w: %s set to %s, outstanding %s", ErrLineExceedsOutstanding, key, amount, line.Outstanding)
	}
	line.Amount = amount
	return nil
}

// Check verifies the plan fits inside a payment of amount.
func (p *Plan) Check(amount models.Money) error {
	for _, l := range p.Lines {
		if l.Amount < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeAmount, l.Key())
		}
		if l.Amount > l.Outstanding {
			return fmt.Errorf("%w: %s allocated %s, outstanding %s", ErrLineExceedsOutstanding, l.Key(), l.Amount, l.Outstanding)
		}
	}
	if total := p.Total(); total > amount {
		return fmt.Errorf("%w: allocated %s, payment %s", ErrExceedsAmount, total, amount)
	}
	return nil
}

func (p *Plan) line(key string) *Line {
	for i := range p.Lines {
		if p.Lines[i].Key() == key {
			return &p.Lines[i]
		}
	}
	return nil
}

// Total is the sum of all line amounts.
func (p *Plan) Total() models.Money {
	var total models.Money
	for _, l := range p.Lines {
		total += l.Amount
	}
	return total
}

// Outstanding is the sum owed across the plan's targets.
func (p *Plan) Outstanding() models.Money {
	var total models.Money
	for _, l := range p.Lines {
		total += l.Outstanding
	}
	return total
}

// Allocations returns the lines that receive money.
func (p *Plan) Allocations() []Line {
	var out []Line
	for _, l := range p.Lines {
		if l.Amount > 0 {
			out = append(out, l)
		}
	}
	return out
}

// OpeningBalance is the amount applied to the opening balance.
func (p *Plan) OpeningBalance() models.Money {
	if l := p.line(OpeningBalanceKey); l != nil {
		return l.Amount
	}
	return 0
}

// Invoices returns the invoice lines that receive money.
func (p *Plan) Invoices() []Line {
	var out []Line
	for _, l := range p.Allocations() {
		if l.Kind == KindInvoice {
			out = append(out, l)
		}
	}
	return out
}

// Summary describes the effect of applying a plan to a payment.
type Summary struct {
	Amount        models.Money `json:"amount"`
	Allocated     models.Money `json:"allocated"`
	Unallocated   models.Money `json:"unallocated"`
	Outstanding   models.Money `json:"outstanding"`
	FullyPaid     []string     `json:"fully_paid"`
	PartiallyPaid []string     `json:"partially_paid"`
}

// Summarize reports totals and which targets the plan settles.
func (p *Plan) Summarize(amount models.Money) Summary {
	s := Summary{
		Amount:        amount,
		Allocated:     p.Total(),
		Outstanding:   p.Outstanding(),
		FullyPaid:     []string{},
		PartiallyPaid: []string{},
	}
	s.Unallocated = amount - s.Allocated
	for _, l := range p.Allocations() {
		if l.Remaining() == 0 {
			s.FullyPaid = append(s.FullyPaid, l.Key())
		} else {
			s.PartiallyPaid = append(s.PartiallyPaid, l.Key())
		}
	}
	return s
}
