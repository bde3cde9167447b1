package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPageHTML = `
<html><body>
<article class="listing-card">
  <a class="listing-link" href="https://market.example/listing/101"></a>
  <div class="listing-title">Submariner Date 126610LN</div>
  <span class="listing-price">$13,500</span>
  <span class="listing-shipping">Ships in 3-5 business days</span>
</article>
<article class="listing-card is-sold">
  <a class="listing-link" href="https://market.example/listing/102"></a>
  <div class="listing-title">Submariner 124060</div>
  <span class="listing-price">USD 12250.50</span>
  <span class="listing-status">Sold</span>
</article>
<article class="listing-card">
  <a class="listing-link" href="https://market.example/listing/103"></a>
  <div class="listing-title">Daytona 116500LN</div>
  <span class="listing-price">Price on request</span>
  <span class="listing-shipping">Ships in 7 days</span>
</article>
<article class="listing-card">
  <div class="listing-title">Card without a link is skipped</div>
</article>
</body></html>`

func TestParseSearchPage(t *testing.T) {
	observed, err := ParseSearchPage(searchPageHTML, 0)
	require.NoError(t, err)
	require.Len(t, observed, 3)

	first := observed[0]
	assert.Equal(t, "https://market.example/listing/101", first.URL)
	assert.Equal(t, "Submariner Date 126610LN", first.Title)
	require.NotNil(t, first.Price)
	assert.Equal(t, 13500.0, *first.Price)
	assert.True(t, first.Available)
	require.NotNil(t, first.ShippingDaysMin)
	require.NotNil(t, first.ShippingDaysMax)
	assert.Equal(t, 3, *first.ShippingDaysMin)
	assert.Equal(t, 5, *first.ShippingDaysMax)

	sold := observed[1]
	require.NotNil(t, sold.Price)
	assert.Equal(t, 12250.50, *sold.Price)
	assert.False(t, sold.Available)

	priceless := observed[2]
	assert.Nil(t, priceless.Price)
	require.NotNil(t, priceless.ShippingDaysMin)
	assert.Equal(t, 7, *priceless.ShippingDaysMin)
	assert.Equal(t, 7, *priceless.ShippingDaysMax)
}

func TestParseSearchPage_MaxListings(t *testing.T) {
	observed, err := ParseSearchPage(searchPageHTML, 2)
	require.NoError(t, err)
	assert.Len(t, observed, 2)
}

func TestParsePrice(t *testing.T) {
	require.Nil(t, parsePrice("Price on request"))
	require.Nil(t, parsePrice(""))

	p := parsePrice("$1,234.56")
	require.NotNil(t, p)
	assert.Equal(t, 1234.56, *p)
}

func TestParseShippingRange(t *testing.T) {
	lo, hi := parseShippingRange("ships in 2-4 days")
	require.NotNil(t, lo)
	require.NotNil(t, hi)
	assert.Equal(t, 2, *lo)
	assert.Equal(t, 4, *hi)

	lo, hi = parseShippingRange("no shipping info here")
	assert.Nil(t, lo)
	assert.Nil(t, hi)
}
