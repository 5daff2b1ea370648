package milestone

import "github.com/shopspring/decimal"

// Installment is one claimable milestone.
type Installment struct {
	Label   string          `json:"label"`
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

// Schedule is an ordered list of installments.
type Schedule []Installment

// Total sums the installment amounts.
func (s Schedule) Total() decimal.Decimal {
	total := decimal.Zero
	for _, in := range s {
		total = total.Add(in.Amount)
	}
	return total
}

// TotalPercent sums the installment percentages.
func (s Schedule) TotalPercent() decimal.Decimal {
	total := decimal.Zero
	for _, in := range s {
		total = total.Add(in.Percent)
	}
	return total
}

func (s Schedule) Labels() []string {
	labels := make([]string, len(s))
	for i, in := range s {
		labels[i] = in.Label
	}
	return labels
}

// Find looks up an installment by label.
func (s Schedule) Find(label string) (Installment, bool) {
	for _, in := range s {
		if in.Label == label {
			return in, true
		}
	}
	return Installment{}, false
}

// From returns the installments starting at label. An unknown label
// yields an empty schedule.
func (s Schedule) From(label string) Schedule {
	for i, in := range s {
		if in.Label == label {
			return append(Schedule{}, s[i:]...)
		}
	}
	return Schedule{}
}

// Concat joins schedules in order.
func Concat(parts ...Schedule) Schedule {
	var out Schedule
	for _, p := range parts {
		out = append(out, p...)
	}
	if out == nil {
		return Schedule{}
	}
	return out
}
