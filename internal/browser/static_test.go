package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

const productHTML = `<html><body>
<h1>Acme Store</h1>
<div class="product">
  <span class="name">Widget</span>
  <span class="price">19.99</span>
  <a class="link" href="/widget">details</a>
</div>
<div class="product">
  <span class="name">Gadget</span>
  <span class="price">42.00</span>
  <a class="link" href="/gadget">details</a>
</div>
</body></html>`

func TestStaticDriver_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(productHTML))
	}))
	defer server.Close()

	driver := NewStaticDriver()
	defer driver.Close()

	require.NoError(t, driver.Get(context.Background(), server.URL))

	source, err := driver.PageSource(context.Background())
	require.NoError(t, err)
	assert.Contains(t, source, "Acme Store")
}

func TestStaticDriver_Get_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	driver := NewStaticDriver()
	err := driver.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, types.BROWSER_NAVIGATE_FAILED, types.CodeOf(err))
	assert.False(t, types.IsRetryable(err))
}

func TestStaticDriver_Get_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	driver := NewStaticDriver()
	err := driver.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))
}

func TestStaticDriver_FindElement(t *testing.T) {
	driver := NewStaticDriver()
	require.NoError(t, driver.LoadHTML(productHTML))

	el, err := driver.FindElement(context.Background(), "h1")
	require.NoError(t, err)

	text, err := el.Text()
	require.NoError(t, err)
	assert.Equal(t, "Acme Store", text)
}

func TestStaticDriver_FindElement_Missing(t *testing.T) {
	driver := NewStaticDriver()
	require.NoError(t, driver.LoadHTML(productHTML))

	_, err := driver.FindElement(context.Background(), ".does-not-exist")
	require.Error(t, err)
	assert.Equal(t, types.BROWSER_ELEMENT_MISSING, types.CodeOf(err))
}

func TestStaticDriver_FindElements_NestedFields(t *testing.T) {
	driver := NewStaticDriver()
	require.NoError(t, driver.LoadHTML(productHTML))

	products, err := driver.FindElements(context.Background(), ".product")
	require.NoError(t, err)
	require.Len(t, products, 2)

	name, err := products[1].FindElement(".name")
	require.NoError(t, err)
	text, err := name.Text()
	require.NoError(t, err)
	assert.Equal(t, "Gadget", text)

	link, err := products[0].FindElement(".link")
	require.NoError(t, err)
	href, err := link.GetAttribute("href")
	require.NoError(t, err)
	assert.Equal(t, "/widget", href)
}

func TestStaticDriver_WaitForElement(t *testing.T) {
	driver := NewStaticDriver()
	require.NoError(t, driver.LoadHTML(productHTML))

	assert.NoError(t, driver.WaitForElement(context.Background(), ".product"))
	assert.Error(t, driver.WaitForElement(context.Background(), ".missing"))
}

func TestStaticDriver_UnsupportedOps(t *testing.T) {
	driver := NewStaticDriver()
	require.NoError(t, driver.LoadHTML(productHTML))

	err := driver.Click(context.Background(), "a", false)
	assert.Equal(t, types.BROWSER_OP_UNSUPPORTED, types.CodeOf(err))

	err = driver.Type(context.Background(), "input", "hi", false)
	assert.Equal(t, types.BROWSER_OP_UNSUPPORTED, types.CodeOf(err))

	_, err = driver.Screenshot(context.Background())
	assert.Equal(t, types.BROWSER_OP_UNSUPPORTED, types.CodeOf(err))
}

func TestStaticDriver_CloseIdempotent(t *testing.T) {
	driver := NewStaticDriver()
	require.NoError(t, driver.LoadHTML(productHTML))

	assert.NoError(t, driver.Close())
	assert.NoError(t, driver.Close())

	_, err := driver.PageSource(context.Background())
	assert.Error(t, err)
}

func TestStaticDriver_NoPageLoaded(t *testing.T) {
	driver := NewStaticDriver()

	_, err := driver.FindElement(context.Background(), "h1")
	require.Error(t, err)
	assert.Equal(t, types.BROWSER_NAVIGATE_FAILED, types.CodeOf(err))
}
