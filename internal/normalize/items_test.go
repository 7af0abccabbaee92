package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-pipeline/internal/invoice"
)

func qty(v float64) *float64 { return &v }

func item(desc string, total *int64) invoice.Item {
	return invoice.Item{Description: desc, Qty: qty(1), LineTotalCents: total}
}

func TestReconcileItemsDropsSummaryEchoes(t *testing.T) {
	h := invoice.Header{
		TaxCents:      invoice.Cents(825),
		DiscountCents: invoice.Cents(500),
	}
	items := []invoice.Item{
		item("Widget A", invoice.Cents(5000)),
		item("Shipping and handling", invoice.Cents(700)),
		item("Discount applied", invoice.Cents(500)),
		item("Widget B", invoice.Cents(3000)),
	}

	out := ReconcileItems(items, h)

	require.Len(t, out, 2)
	assert.Equal(t, "Widget A", out[0].Description)
	assert.Equal(t, "Widget B", out[1].Description)
}

func TestReconcileItemsDropsItemsEchoingHeaderAmounts(t *testing.T) {
	h := invoice.Header{TaxCents: invoice.Cents(825)}
	items := []invoice.Item{
		item("Widget A", invoice.Cents(5000)),
		{Description: "Some trailing row", Qty: qty(2), UnitPriceCents: invoice.Cents(400), LineTotalCents: invoice.Cents(825)},
	}

	out := ReconcileItems(items, h)

	require.Len(t, out, 1)
	assert.Equal(t, "Widget A", out[0].Description)
}

func TestReconcileItemsMergesDescriptorLines(t *testing.T) {
	h := invoice.Header{}
	items := []invoice.Item{
		item("Laptop stand", invoice.Cents(4999)),
		{Description: "Color: Silver, aluminum"},
		item("USB cable", invoice.Cents(999)),
	}

	out := ReconcileItems(items, h)

	require.Len(t, out, 2)
	assert.Equal(t, "Laptop stand Color: Silver, aluminum", out[0].Description)
	assert.Equal(t, int64(4999), *out[0].LineTotalCents)
	assert.Equal(t, "USB cable", out[1].Description)
}

func TestReconcileItemsMergesRepeatedTotalDescriptor(t *testing.T) {
	h := invoice.Header{}
	items := []invoice.Item{
		item("Laptop stand", invoice.Cents(4999)),
		{Description: "Model X-200", LineTotalCents: invoice.Cents(4999)},
	}

	out := ReconcileItems(items, h)

	require.Len(t, out, 1)
	assert.Equal(t, "Laptop stand Model X-200", out[0].Description)
}

func TestReconcileItemsKeepsPricedLines(t *testing.T) {
	h := invoice.Header{}
	items := []invoice.Item{
		item("Widget A", invoice.Cents(5000)),
		{Description: "Widget B", Qty: qty(2), UnitPriceCents: invoice.Cents(1500), LineTotalCents: invoice.Cents(3000)},
	}

	out := ReconcileItems(items, h)

	require.Len(t, out, 2)
}

func TestReconcileItemsReindexes(t *testing.T) {
	h := invoice.Header{TaxCents: invoice.Cents(825)}
	items := []invoice.Item{
		{Idx: 3, Description: "Widget A", Qty: qty(1), LineTotalCents: invoice.Cents(5000)},
		{Idx: 7, Description: "Tax line", Qty: qty(1), LineTotalCents: invoice.Cents(825)},
		{Idx: 9, Description: "Widget B", Qty: qty(1), UnitPriceCents: invoice.Cents(3000), LineTotalCents: invoice.Cents(3000)},
	}

	out := ReconcileItems(items, h)

	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Idx)
	assert.Equal(t, 2, out[1].Idx)
}

func TestReconcileItemsIdempotent(t *testing.T) {
	h := invoice.Header{TaxCents: invoice.Cents(825), DiscountCents: invoice.Cents(500)}
	items := []invoice.Item{
		item("Widget A", invoice.Cents(5000)),
		item("Freight charge", invoice.Cents(700)),
		{Description: "Color: Blue"},
		item("Widget B", invoice.Cents(3000)),
	}

	once := ReconcileItems(items, h)
	twice := ReconcileItems(once, h)
	assert.Equal(t, once, twice)
}

func TestItemsSum(t *testing.T) {
	items := []invoice.Item{
		item("a", invoice.Cents(100)),
		item("b", nil),
		item("c", invoice.Cents(250)),
	}
	assert.Equal(t, int64(350), ItemsSum(items))
}

func TestExpectedItemsTotalPicksClosest(t *testing.T) {
	h := invoice.Header{
		SubtotalCents: invoice.Cents(95827),
		TotalCents:    invoice.Cents(105410),
	}
	assert.Equal(t, int64(95827), ExpectedItemsTotal(h, 96000))
	assert.Equal(t, int64(105410), ExpectedItemsTotal(h, 105000))
	assert.Equal(t, int64(500), ExpectedItemsTotal(invoice.Header{}, 500))
}

func TestTotalsConsistent(t *testing.T) {
	consistent := invoice.Header{
		SubtotalCents: invoice.Cents(95827),
		TaxCents:      invoice.Cents(9583),
		TotalCents:    invoice.Cents(105410),
	}
	assert.True(t, TotalsConsistent(consistent))

	inconsistent := consistent.Clone()
	inconsistent.TotalCents = invoice.Cents(999999)
	assert.False(t, TotalsConsistent(inconsistent))

	missing := invoice.Header{SubtotalCents: invoice.Cents(100)}
	assert.True(t, TotalsConsistent(missing))
}

func TestFilterFalsePositiveWarnings(t *testing.T) {
	h := invoice.Header{
		SubtotalCents: invoice.Cents(95827),
		TaxCents:      invoice.Cents(9583),
		TotalCents:    invoice.Cents(105410),
	}
	warnings := []string{
		"Total and subtotal disagree by tax amount",
		"vendor name partially unreadable",
	}

	out := FilterFalsePositiveWarnings(warnings, h)

	require.Len(t, out, 1)
	assert.Equal(t, "vendor name partially unreadable", out[0])
}

func TestFilterFalsePositiveWarningsKeepsRealMismatch(t *testing.T) {
	h := invoice.Header{
		SubtotalCents: invoice.Cents(95827),
		TaxCents:      invoice.Cents(9583),
		TotalCents:    invoice.Cents(200000),
	}
	warnings := []string{"total and subtotal disagree"}

	out := FilterFalsePositiveWarnings(warnings, h)

	assert.Equal(t, warnings, out)
}
