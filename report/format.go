package report

import (
	"github.com/shopspring/decimal"
	"github.com/warp/contract-admin/locale"
)

// Money is an amount with its display renderings.
type Money struct {
	Value   decimal.Decimal `json:"value"`
	Display string          `json:"display"`
	InWords string          `json:"in_words,omitempty"`
}

func NewMoney(v decimal.Decimal) Money {
	return Money{Value: v, Display: locale.FormatCurrency(v), InWords: locale.AmountInLakhsCrores(v)}
}

// FormattedTotals renders Totals for display.
type FormattedTotals struct {
	ContractValue  Money `json:"contract_value"`
	WorkOrderValue Money `json:"work_order_value"`
	Admissible     Money `json:"admissible"`
	LD             Money `json:"liquidity_damage"`
	Payable        Money `json:"payable"`
	Released       Money `json:"released"`
	PendingRelease Money `json:"pending_release"`
}

func (t Totals) Format() FormattedTotals {
	return FormattedTotals{
		ContractValue:  NewMoney(t.ContractValue),
		WorkOrderValue: NewMoney(t.WorkOrderValue),
		Admissible:     NewMoney(t.Admissible),
		LD:             NewMoney(t.LD),
		Payable:        NewMoney(t.Payable),
		Released:       NewMoney(t.Released),
		PendingRelease: NewMoney(t.PendingRelease),
	}
}
