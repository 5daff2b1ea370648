package contract_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-admin/contract"
	"github.com/warp/contract-admin/contract/store"
	"github.com/warp/contract-admin/milestone"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

var (
	fixedNow     = time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
	contractDate = time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC)
	hardwareKey  = contract.WorkOrderKey{ContractNumber: "C-100", SubContractNumber: "S-1", WorkOrderNumber: "WO-7"}
)

type testBook struct {
	*contract.Book
	ctx context.Context
}

func newTestBook(t *testing.T) testBook {
	t.Helper()
	n := 0
	b := contract.NewBook(store.NewMemory(),
		contract.WithClock(func() time.Time { return fixedNow }),
		contract.WithIDGenerator(func() string { n++; return fmt.Sprintf("wo-%d", n) }),
	)
	return testBook{Book: b, ctx: context.Background()}
}

func hardwareItem() contract.ItemInput {
	return contract.ItemInput{
		Name:         "Server Rack",
		Location:     "Pune DC",
		Category:     contract.CategoryHardware,
		Qty:          10,
		ValuePerItem: d("100000"),
		Payload: contract.HardwarePayload{
			Warranty: contract.CoverageTerms{DurationMonths: 12, Percent: d("15")},
		},
	}
}

func hardwareDraft() contract.WorkOrderDraft {
	return contract.WorkOrderDraft{
		WorkOrderKey:       hardwareKey,
		Vendor:             "Acme Systems",
		Location:           "Pune",
		ContractDate:       contractDate,
		ContractValueBasic: d("1000000"),
		GSTPercent:         d("18"),
		WorkOrderPercent:   d("100"),
		Proof:              contract.ArtifactRef{ID: "file-1", Filename: "wo.pdf"},
		Items:              []contract.ItemInput{hardwareItem()},
	}
}

func hardwarePlan() contract.HardwarePlan {
	return contract.HardwarePlan{
		DeliveryPercent:      d("60"),
		UATSubmissionPercent: d("10"),
		UATCompletionPercent: d("15"),
		WarrantyPercent:      d("15"),
		WarrantyMonths:       12,
		WarrantyPeriod:       milestone.Annually,
	}
}

// seedWorkOrder stores the hardware work order and returns it.
func (tb testBook) seedWorkOrder(t *testing.T) contract.WorkOrder {
	t.Helper()
	wo, _, err := tb.CreateWorkOrder(tb.ctx, hardwareDraft())
	require.NoError(t, err)
	return wo
}

func (tb testBook) hardwareRef(t *testing.T) contract.ItemRef {
	t.Helper()
	ref, err := tb.ResolveItem(tb.ctx, contract.ItemLookup{WorkOrderKey: hardwareKey, ItemName: "Server Rack"})
	require.NoError(t, err)
	return ref
}

func invoiceDraft(number string, ref contract.ItemRef) *contract.InvoiceDraft {
	return contract.NewInvoiceDraft(number).
		WithReference(ref).
		WithFinancials(contract.InvoiceFinancials{
			Qty:          4,
			InvoiceValue: d("50000"),
			GSTPercent:   d("18"),
			Admissible:   d("50000"),
			PlannedClaim: d("50000"),
			Claimed:      d("45000"),
		}).
		WithPlan(hardwarePlan()).
		ClaimMilestones("Warranty Year 1 (15.00%)").
		WithProof(contract.ArtifactRef{ID: "file-2", Filename: "inv.pdf"})
}

func requireViolation(t *testing.T, err error, field string) *contract.ValidationError {
	t.Helper()
	var verr *contract.ValidationError
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has(field), "expected violation on %q, got %v", field, verr.Violations)
	return verr
}

func warningCodes(ws []contract.Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}
