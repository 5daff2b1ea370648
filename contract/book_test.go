package contract_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-admin/contract"
	"github.com/warp/contract-admin/milestone"
)

// =============================================================================
// WORK ORDERS
// =============================================================================

func TestCreateWorkOrder_DerivesValues(t *testing.T) {
	tb := newTestBook(t)

	wo, warnings, err := tb.CreateWorkOrder(tb.ctx, hardwareDraft())
	require.NoError(t, err)

	assert.Empty(t, warnings)
	assert.Equal(t, "wo-1", wo.ID)
	assert.True(t, d("1000000").Equal(wo.WorkOrderValueBasic))
	assert.True(t, d("1180000").Equal(wo.TotalContractValueWithGST))
	require.Len(t, wo.Items, 1)

	it := wo.Items[0]
	assert.Equal(t, 1, it.SerialNo)
	assert.True(t, d("1000000").Equal(it.ValueWithoutGST))
	assert.True(t, d("1180000").Equal(it.ValueWithGST))

	hw, ok := it.Payload.(contract.HardwarePayload)
	require.True(t, ok)
	assert.True(t, d("15000").Equal(hw.Warranty.Rate))
	assert.Equal(t, fixedNow, wo.CreatedAt)
}

func TestCreateWorkOrder_ReportsEveryViolation(t *testing.T) {
	tb := newTestBook(t)
	draft := hardwareDraft()
	draft.ContractNumber = ""
	draft.Vendor = " "
	draft.Proof = contract.ArtifactRef{}
	draft.GSTPercent = d("101")
	draft.Items[0].Qty = 0

	_, _, err := tb.CreateWorkOrder(tb.ctx, draft)

	verr := requireViolation(t, err, "contract_number")
	assert.True(t, verr.Has("vendor"))
	assert.True(t, verr.Has("proof"))
	assert.True(t, verr.Has("gst_percent"))
	assert.True(t, verr.Has("items[0].qty"))
	assert.True(t, contract.IsClientError(err))

	all, _ := tb.WorkOrders(tb.ctx)
	assert.Empty(t, all)
}

func TestCreateWorkOrder_RequiresItems(t *testing.T) {
	tb := newTestBook(t)
	draft := hardwareDraft()
	draft.Items = nil

	_, _, err := tb.CreateWorkOrder(tb.ctx, draft)
	requireViolation(t, err, "items")
}

func TestCreateWorkOrder_RejectsMismatchedPayload(t *testing.T) {
	tb := newTestBook(t)
	draft := hardwareDraft()
	draft.Items[0].Payload = contract.TelecomPayload{Link: "MPLS"}

	_, _, err := tb.CreateWorkOrder(tb.ctx, draft)
	requireViolation(t, err, "items[0].payload")
}

func TestCreateWorkOrder_ItemTotalMismatchIsWarning(t *testing.T) {
	tb := newTestBook(t)
	draft := hardwareDraft()
	draft.Items[0].Qty = 3

	wo, warnings, err := tb.CreateWorkOrder(tb.ctx, draft)
	require.NoError(t, err)
	assert.Contains(t, warningCodes(warnings), "items_total_mismatch")
	assert.Equal(t, "wo-1", wo.ID)
}

func TestCreateWorkOrder_DuplicateRejection(t *testing.T) {
	// GIVEN: a stored work order
	tb := newTestBook(t)
	tb.seedWorkOrder(t)

	// WHEN: the same six-part key is submitted again
	_, _, err := tb.CreateWorkOrder(tb.ctx, hardwareDraft())

	// THEN: rejected as a conflict, store unchanged
	assert.ErrorIs(t, err, contract.ErrDuplicateWorkOrder)
	assert.True(t, contract.IsConflict(err))
	var dup *contract.DuplicateItemError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "wo-1", dup.WorkOrderID)

	all, _ := tb.WorkOrders(tb.ctx)
	assert.Len(t, all, 1)

	// Changing any one key part admits it.
	variants := []func(*contract.WorkOrderDraft){
		func(d *contract.WorkOrderDraft) { d.ContractNumber = "C-101" },
		func(d *contract.WorkOrderDraft) { d.SubContractNumber = "S-2" },
		func(d *contract.WorkOrderDraft) { d.WorkOrderNumber = "WO-8" },
		func(d *contract.WorkOrderDraft) { d.Items[0].Name = "Blade" },
		func(d *contract.WorkOrderDraft) { d.Items[0].Location = "Mumbai DC" },
		func(d *contract.WorkOrderDraft) {
			d.Items[0].Category = contract.CategoryOthers
			d.Items[0].Payload = nil
		},
	}
	for i, mutate := range variants {
		draft := hardwareDraft()
		mutate(&draft)
		_, _, err := tb.CreateWorkOrder(tb.ctx, draft)
		assert.NoError(t, err, "variant %d", i)
	}
}

func TestCreateWorkOrder_DuplicateWithinDraft(t *testing.T) {
	tb := newTestBook(t)
	draft := hardwareDraft()
	draft.Items = append(draft.Items, hardwareItem())

	_, _, err := tb.CreateWorkOrder(tb.ctx, draft)
	requireViolation(t, err, "items[1]")
}

func TestEditWorkOrder_RederivesItems(t *testing.T) {
	tb := newTestBook(t)
	wo := tb.seedWorkOrder(t)

	edited, warnings, err := tb.EditWorkOrder(tb.ctx, wo.ID, contract.WorkOrderEdit{
		GSTPercent:       ptr(d("12")),
		WorkOrderPercent: ptr(d("50")),
	})
	require.NoError(t, err)

	assert.True(t, d("500000").Equal(edited.WorkOrderValueBasic))
	assert.True(t, d("1120000").Equal(edited.Items[0].ValueWithGST))
	assert.Contains(t, warningCodes(warnings), "items_total_mismatch")

	stored, err := tb.GetWorkOrder(tb.ctx, wo.ID)
	require.NoError(t, err)
	assert.True(t, d("12").Equal(stored.GSTPercent))
}

func TestEditWorkOrder_InvalidEditLeavesRecord(t *testing.T) {
	tb := newTestBook(t)
	wo := tb.seedWorkOrder(t)

	_, _, err := tb.EditWorkOrder(tb.ctx, wo.ID, contract.WorkOrderEdit{Vendor: ptr("")})
	requireViolation(t, err, "vendor")

	stored, _ := tb.GetWorkOrder(tb.ctx, wo.ID)
	assert.Equal(t, "Acme Systems", stored.Vendor)
}

func TestAddAndRemoveItem(t *testing.T) {
	tb := newTestBook(t)
	wo := tb.seedWorkOrder(t)

	extra := contract.ItemInput{
		Name: "Switch", Location: "Pune DC", Category: contract.CategoryOthers,
		Qty: 2, ValuePerItem: d("5000"),
	}
	updated, _, err := tb.AddItem(tb.ctx, wo.ID, extra)
	require.NoError(t, err)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, 2, updated.Items[1].SerialNo)

	// adding it again collides
	_, _, err = tb.AddItem(tb.ctx, wo.ID, extra)
	assert.ErrorIs(t, err, contract.ErrDuplicateWorkOrder)

	updated, _, err = tb.RemoveItem(tb.ctx, wo.ID, 1)
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "Switch", updated.Items[0].Name)
	assert.Equal(t, 1, updated.Items[0].SerialNo)

	_, _, err = tb.RemoveItem(tb.ctx, wo.ID, 1)
	requireViolation(t, err, "items")

	_, _, err = tb.RemoveItem(tb.ctx, wo.ID, 9)
	assert.True(t, contract.IsNotFound(err))
}

func TestWorkOrders_ReturnCopies(t *testing.T) {
	tb := newTestBook(t)
	wo := tb.seedWorkOrder(t)

	got, err := tb.GetWorkOrder(tb.ctx, wo.ID)
	require.NoError(t, err)
	got.Items[0].Name = "mutated"

	again, _ := tb.GetWorkOrder(tb.ctx, wo.ID)
	assert.Equal(t, "Server Rack", again.Items[0].Name)
}

func TestResolveItem_NotFound(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)

	_, err := tb.ResolveItem(tb.ctx, contract.ItemLookup{WorkOrderKey: hardwareKey, ItemName: "Nope"})
	assert.ErrorIs(t, err, contract.ErrItemNotFound)

	other := hardwareKey
	other.WorkOrderNumber = "WO-404"
	_, err = tb.ResolveItem(tb.ctx, contract.ItemLookup{WorkOrderKey: other, ItemName: "Server Rack"})
	assert.ErrorIs(t, err, contract.ErrWorkOrderNotFound)
}

// =============================================================================
// INVOICES
// =============================================================================

func TestCreateInvoice_EndToEnd(t *testing.T) {
	// GIVEN: a hardware work order with a 12 month annual warranty at 15%
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	ref := tb.hardwareRef(t)

	// WHEN: the warranty milestone is claimed on an admissible of 50,000
	inv, warnings, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", ref))
	require.NoError(t, err)

	// THEN: the schedule offers one warranty installment worth 7,500
	assert.Empty(t, warnings)
	assert.Equal(t, []string{
		"Delivery (60.00%)",
		"UAT Submission (10.00%)",
		"UAT Completion (15.00%)",
		"Warranty Year 1 (15.00%)",
	}, inv.Milestones.Labels())

	w, ok := inv.Milestones.Find("Warranty Year 1 (15.00%)")
	require.True(t, ok)
	assert.True(t, d("7500").Equal(w.Amount))

	assert.Equal(t, []contract.MilestoneID{"Warranty Year 1 (15.00%)"}, inv.ClaimedMilestones)
	assert.True(t, d("7500").Equal(inv.Progress["Warranty Year 1 (15.00%)"].Scheduled))
	assert.True(t, d("45000").Equal(inv.PayableAmount))
	assert.Equal(t, contract.PaymentPending, inv.PaymentStatus)
	assert.Equal(t, contract.StatusPending, inv.Status())
	assert.Equal(t, "Acme Systems", inv.Vendor)
	assert.Equal(t, 10, inv.ItemQtyCeiling)
	assert.Equal(t, "Pune DC", inv.ItemLocation)
}

func TestCreateInvoice_DuplicateNumber(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	ref := tb.hardwareRef(t)

	_, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", ref))
	require.NoError(t, err)

	_, _, err = tb.CreateInvoice(tb.ctx, invoiceDraft(" INV-1 ", ref))
	assert.ErrorIs(t, err, contract.ErrDuplicateInvoice)

	all, _ := tb.Invoices(tb.ctx)
	assert.Len(t, all, 1)
}

func TestCreateInvoice_QtyCeiling(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	draft := invoiceDraft("INV-1", tb.hardwareRef(t)).WithFinancials(contract.InvoiceFinancials{
		Qty:          11,
		InvoiceValue: d("50000"),
		Admissible:   d("50000"),
		PlannedClaim: d("50000"),
		Claimed:      d("45000"),
	})

	_, _, err := tb.CreateInvoice(tb.ctx, draft)
	requireViolation(t, err, "qty")
	assert.ErrorIs(t, err, contract.ErrCeilingExceeded)
}

func TestCreateInvoice_PayableAboveAdmissible(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	draft := invoiceDraft("INV-1", tb.hardwareRef(t)).WithFinancials(contract.InvoiceFinancials{
		InvoiceValue: d("50000"),
		Admissible:   d("40000"),
		PlannedClaim: d("50000"),
		Claimed:      d("45000"),
	})

	_, _, err := tb.CreateInvoice(tb.ctx, draft)
	requireViolation(t, err, "payable_amount")
	assert.ErrorIs(t, err, contract.ErrCeilingExceeded)
}

func TestCreateInvoice_ReleaseOrderCeilingAndWarning(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	ref := tb.hardwareRef(t)
	roDate := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", ref).
		WithReleaseOrder(contract.ReleaseOrder{Number: "RO-1", Amount: d("60000"), Date: &roDate}))
	requireViolation(t, err, "release_order.amount")

	inv, warnings, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-2", ref).
		WithReleaseOrder(contract.ReleaseOrder{Number: "RO-2", Amount: d("48000"), Date: &roDate}))
	require.NoError(t, err)
	assert.Contains(t, warningCodes(warnings), "release_order_exceeds_payable")
	assert.Equal(t, contract.PaymentPaid, inv.PaymentStatus)
}

func TestCreateInvoice_LiquidityDamage(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	ref := tb.hardwareRef(t)

	_, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", ref).
		WithLiquidityDamage(contract.LDInput{Percent: d("10"), AppliedOn: contract.LDOnClaimed}))
	requireViolation(t, err, "liquidity_damage.reason")

	inv, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-2", ref).
		WithLiquidityDamage(contract.LDInput{Percent: d("10"), AppliedOn: contract.LDOnClaimed, Reason: "late delivery"}))
	require.NoError(t, err)
	assert.True(t, d("4500").Equal(inv.LD.Amount))
	assert.True(t, d("40500").Equal(inv.PayableAmount))

	inv, _, err = tb.CreateInvoice(tb.ctx, invoiceDraft("INV-3", ref).
		WithLiquidityDamage(contract.LDInput{Percent: d("10"), AppliedOn: contract.LDOnPQP, Reason: "late"}))
	require.NoError(t, err)
	assert.True(t, d("5000").Equal(inv.LD.Amount))
	assert.True(t, d("45000").Equal(inv.PayableAmount))
}

func TestCreateInvoice_DelayReasonRequired(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	ref := tb.hardwareRef(t)
	received := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	late := received.AddDate(0, 0, 31)
	early := received.AddDate(0, 0, -1)

	draft := func(n string, ro time.Time) *contract.InvoiceDraft {
		return invoiceDraft(n, ref).
			WithTracking(contract.InvoiceTracking{ReceivedAtTMD: &received}).
			WithReleaseOrder(contract.ReleaseOrder{Number: "RO", Amount: d("1000"), Date: &ro})
	}

	_, _, err := tb.CreateInvoice(tb.ctx, draft("INV-1", late))
	requireViolation(t, err, "delay_reason")

	inv, _, err := tb.CreateInvoice(tb.ctx, draft("INV-2", late).WithReasons("audit hold", ""))
	require.NoError(t, err)
	days, ok := inv.DaysBetweenROAndReceive()
	assert.True(t, ok)
	assert.Equal(t, 31, days)

	_, _, err = tb.CreateInvoice(tb.ctx, draft("INV-3", early))
	requireViolation(t, err, "release_order.date")
}

func TestCreateInvoice_ClaimedLabelsMustBeOffered(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)

	_, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", tb.hardwareRef(t)).ClaimMilestones("Warranty Year 2 (15.00%)"))
	requireViolation(t, err, "claimed_milestones")

	_, _, err = tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", tb.hardwareRef(t)).ClaimMilestones())
	requireViolation(t, err, "claimed_milestones")
}

func TestCreateInvoice_NoMilestonesProducible(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	plan := contract.HardwarePlan{WarrantyPercent: d("100"), WarrantyMonths: 6, WarrantyPeriod: milestone.Annually}

	_, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", tb.hardwareRef(t)).WithPlan(plan))
	requireViolation(t, err, "milestones")
}

func TestCreateInvoice_PlanCategoryMismatch(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	plan := contract.StaffPlan{InstallmentPlan: contract.InstallmentPlan{Years: 1, Period: milestone.Quarterly}}

	_, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", tb.hardwareRef(t)).WithPlan(plan))
	requireViolation(t, err, "plan")
}

func TestCreateInvoice_AdmissibleAboveWorkOrderWarns(t *testing.T) {
	tb := newTestBook(t)
	draft := hardwareDraft()
	draft.WorkOrderPercent = d("2")
	_, _, err := tb.CreateWorkOrder(tb.ctx, draft)
	require.NoError(t, err)

	_, warnings, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", tb.hardwareRef(t)))
	require.NoError(t, err)
	assert.Contains(t, warningCodes(warnings), "admissible_exceeds_work_order")
	assert.NotContains(t, warningCodes(warnings), "admissible_exceeds_contract")
}

func TestDeleteWorkOrder_ReferentialGuard(t *testing.T) {
	// GIVEN: a work order with an invoice raised against it
	tb := newTestBook(t)
	wo := tb.seedWorkOrder(t)
	_, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", tb.hardwareRef(t)))
	require.NoError(t, err)

	// WHEN: deleting the work order
	err = tb.DeleteWorkOrder(tb.ctx, wo.ID)

	// THEN: blocked, naming the invoice
	var refErr *contract.ReferentialIntegrityError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, []string{"INV-1"}, refErr.InvoiceNumbers)
	assert.True(t, contract.IsConflict(err))

	// Deleting the invoice first unblocks it.
	require.NoError(t, tb.DeleteInvoice(tb.ctx, "INV-1"))
	require.NoError(t, tb.DeleteWorkOrder(tb.ctx, wo.ID))

	_, err = tb.GetWorkOrder(tb.ctx, wo.ID)
	assert.ErrorIs(t, err, contract.ErrWorkOrderNotFound)
}

func TestEditInvoice(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	_, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", tb.hardwareRef(t)))
	require.NoError(t, err)

	// admissible below payable is rejected
	_, _, err = tb.EditInvoice(tb.ctx, "INV-1", contract.InvoiceEdit{Admissible: ptr(d("40000"))})
	assert.ErrorIs(t, err, contract.ErrCeilingExceeded)

	_, _, err = tb.EditInvoice(tb.ctx, "INV-1", contract.InvoiceEdit{Qty: ptr(12)})
	requireViolation(t, err, "qty")

	inv, _, err := tb.EditInvoice(tb.ctx, "INV-1", contract.InvoiceEdit{
		Location:   ptr("Mumbai DC"),
		Admissible: ptr(d("60000")),
	})
	require.NoError(t, err)
	assert.Equal(t, "Mumbai DC", inv.ItemLocation)
	assert.True(t, d("60000").Equal(inv.AdmissibleAmount))

	_, _, err = tb.EditInvoice(tb.ctx, "INV-404", contract.InvoiceEdit{})
	assert.True(t, contract.IsNotFound(err))
}

func TestRecordMilestonePayment(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	_, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-1", tb.hardwareRef(t)).
		ClaimMilestones("Delivery (60.00%)", "Warranty Year 1 (15.00%)"))
	require.NoError(t, err)

	roDate := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	inv, _, err := tb.RecordMilestonePayment(tb.ctx, "INV-1", contract.MilestonePayment{
		Milestone:    "Delivery (60.00%)",
		PlannedClaim: d("30000"),
		Claimed:      d("30000"),
		ReleaseOrder: contract.ReleaseOrder{Number: "RO-9", Amount: d("30000"), Date: &roDate},
	})
	require.NoError(t, err)
	assert.Equal(t, contract.StatusPartiallyProcessed, inv.Status())
	assert.True(t, d("30000").Equal(inv.Progress["Delivery (60.00%)"].Payable))

	// Released total may not pass admissible.
	_, _, err = tb.RecordMilestonePayment(tb.ctx, "INV-1", contract.MilestonePayment{
		Milestone:    "Warranty Year 1 (15.00%)",
		PlannedClaim: d("7500"),
		Claimed:      d("7500"),
		ReleaseOrder: contract.ReleaseOrder{Number: "RO-10", Amount: d("25000"), Date: &roDate},
	})
	assert.ErrorIs(t, err, contract.ErrCeilingExceeded)

	inv, warnings, err := tb.RecordMilestonePayment(tb.ctx, "INV-1", contract.MilestonePayment{
		Milestone:    "Warranty Year 1 (15.00%)",
		PlannedClaim: d("7500"),
		Claimed:      d("8000"),
		ReleaseOrder: contract.ReleaseOrder{Number: "RO-10", Amount: d("7500"), Date: &roDate},
	})
	require.NoError(t, err)
	assert.Contains(t, warningCodes(warnings), "claimed_exceeds_scheduled")
	assert.Equal(t, contract.StatusProcessed, inv.Status())

	_, _, err = tb.RecordMilestonePayment(tb.ctx, "INV-1", contract.MilestonePayment{Milestone: "UAT Submission (10.00%)"})
	assert.ErrorIs(t, err, contract.ErrMilestoneNotFound)
}

func TestInvoicesFor(t *testing.T) {
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	ref := tb.hardwareRef(t)
	for _, n := range []string{"INV-1", "INV-2"} {
		_, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft(n, ref))
		require.NoError(t, err)
	}

	got, err := tb.InvoicesFor(tb.ctx, hardwareKey)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	inv, err := tb.GetInvoice(tb.ctx, "INV-2")
	require.NoError(t, err)
	assert.Equal(t, "INV-2", inv.InvoiceNumber)
}

func TestBook_ConcurrentInvoiceNumbers(t *testing.T) {
	// GIVEN: many goroutines racing to create the same invoice number
	tb := newTestBook(t)
	tb.seedWorkOrder(t)
	ref := tb.hardwareRef(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, dup := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := tb.CreateInvoice(tb.ctx, invoiceDraft("INV-RACE", ref))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, contract.ErrDuplicateInvoice):
				dup++
			}
		}()
	}
	wg.Wait()

	// THEN: exactly one wins
	assert.Equal(t, 1, created)
	assert.Equal(t, 19, dup)
}
