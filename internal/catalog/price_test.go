package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePriceRowPlain(t *testing.T) {
	t.Parallel()

	msrp, sale := ParsePriceRow("$79.99")
	require.NotNil(t, msrp)
	require.InDelta(t, 79.99, *msrp, 0.001)
	require.NotNil(t, sale)
	require.InDelta(t, 79.99, *sale, 0.001)
}

func TestParsePriceRowDiscount(t *testing.T) {
	t.Parallel()

	msrp, sale := ParsePriceRow("$239.99$191.9920% OFF")
	require.NotNil(t, msrp)
	require.InDelta(t, 239.99, *msrp, 0.001)
	require.NotNil(t, sale)
	require.InDelta(t, 191.99, *sale, 0.001)
}

func TestParsePriceRowInsiders(t *testing.T) {
	t.Parallel()

	msrp, sale := ParsePriceRow("$49.99$44.99Insiders early access")
	require.NotNil(t, msrp)
	require.InDelta(t, 49.99, *msrp, 0.001)
	require.NotNil(t, sale)
	require.InDelta(t, 44.99, *sale, 0.001)
}

func TestParsePriceRowThousandsSeparator(t *testing.T) {
	t.Parallel()

	msrp, _ := ParsePriceRow("$1,234.99")
	require.NotNil(t, msrp)
	require.InDelta(t, 1234.99, *msrp, 0.001)
}

func TestParsePriceRowMalformed(t *testing.T) {
	t.Parallel()

	msrp, sale := ParsePriceRow("Coming Soon")
	require.Nil(t, msrp)
	require.Nil(t, sale)

	msrp, sale = ParsePriceRow("")
	require.Nil(t, msrp)
	require.Nil(t, sale)

	msrp, sale = ParsePriceRow("weird 20% badge only")
	require.Nil(t, msrp)
	require.Nil(t, sale)
}
