package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iyhunko/dapp-marketplace/internal/http/controller"
	"github.com/iyhunko/dapp-marketplace/internal/model"
	sqspkg "github.com/iyhunko/dapp-marketplace/internal/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob   = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, m *Marketplace) *client {
	t.Helper()
	server := httptest.NewServer(m.Router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: server.URL, http: &http.Client{Jar: jar, Timeout: 10 * time.Second}}
}

func (c *client) page(path string) string {
	resp, err := c.http.Get(c.base + path)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return string(body)
}

func (c *client) getJSON(path string, out any) {
	resp, err := c.http.Get(c.base + path)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
}

// submitProduct posts the create form and returns the page the redirect lands on.
func (c *client) submitProduct(fields map[string]string, filename string, image []byte) string {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(c.t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("image", filename)
		require.NoError(c.t, err)
		_, err = part.Write(image)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, mw.Close())

	resp, err := c.http.Post(c.base+"/products", mw.FormDataContentType(), &body)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	require.Equal(c.t, "/", resp.Request.URL.Path)

	page, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return string(page)
}

func TestMarketplaceFlow(t *testing.T) {
	// given
	m := StartMarketplace(t, alice)
	c := newClient(t, m)

	received := make(chan sqspkg.ProductMessage, 1)
	consumer := sqspkg.NewConsumer(m.Queue, queueURL, func(_ context.Context, msg sqspkg.ProductMessage) error {
		received <- msg
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumerDone := make(chan error, 1)
	go func() { consumerDone <- consumer.Start(ctx) }()

	// when
	page := c.page("/")

	// then
	assert.Contains(t, page, "Connected: "+model.ShortAddress(strings.ToLower(alice.Hex())))
	assert.Contains(t, page, "+ Add Product")
	assert.NotContains(t, page, "Owner:")

	// when
	page = c.submitProduct(map[string]string{
		"name":        "Chair",
		"description": "Oak chair",
		"price":       "0.5",
	}, "chair.png", pngHeader)

	// then
	assert.Contains(t, page, "Chair")
	assert.Contains(t, page, "0.5 ETH")
	assert.Contains(t, page, "Owner: You")
	assert.NotContains(t, page, `value="Chair"`)

	stored := m.Node.Products()
	require.Len(t, stored, 1)
	assert.Equal(t, "Chair", stored[0].Name)
	assert.Equal(t, "500000000000000000", stored[0].Price.String())
	assert.Equal(t, alice, stored[0].Owner)
	require.Len(t, m.Storage.Files(), 1)

	// when
	assert.Equal(t, 1, m.Outbox.Len())
	m.Worker.Flush(ctx)

	// then
	select {
	case msg := <-received:
		assert.Equal(t, sqspkg.ActionCreated, msg.Action)
		assert.Equal(t, uint64(1), msg.ProductID)
		assert.Equal(t, "Chair", msg.Name)
		assert.Equal(t, "0.5", msg.Price)
		assert.True(t, strings.EqualFold(alice.Hex(), msg.Owner))
		assert.Contains(t, msg.ImageURL, "chair.png")
		assert.NotEmpty(t, msg.TxHash)
	case <-time.After(5 * time.Second):
		t.Fatal("product notification was not delivered")
	}
	assert.Equal(t, 0, m.Outbox.Len())
	assert.Eventually(t, func() bool { return len(m.Queue.Deleted()) == 1 }, 5*time.Second, pollInterval)

	cancel()
	assert.ErrorIs(t, <-consumerDone, context.Canceled)
}

func TestMarketplaceRejectedTransaction(t *testing.T) {
	// given
	m := StartMarketplace(t, alice)
	m.Node.RejectTransactions(true)
	c := newClient(t, m)
	c.page("/")

	// when
	page := c.submitProduct(map[string]string{
		"name":        "Lamp",
		"description": "Desk lamp",
		"price":       "0.1",
	}, "", nil)

	// then
	assert.Contains(t, page, "Transaction was rejected by user")
	assert.Contains(t, page, `value="Lamp"`)
	assert.Empty(t, m.Node.Products())
	assert.Equal(t, 0, m.Outbox.Len())
}

func TestMarketplaceAccountSwitch(t *testing.T) {
	// given
	m := StartMarketplace(t, alice)
	c := newClient(t, m)
	c.submitProduct(map[string]string{
		"name":        "Chair",
		"description": "Oak chair",
		"price":       "0.5",
	}, "", nil)

	// when
	m.Node.SetAccounts(bob)

	// then
	assert.Eventually(t, func() bool {
		var status controller.WalletResponse
		c.getJSON("/api/wallet", &status)
		return strings.EqualFold(bob.Hex(), status.Account)
	}, 5*time.Second, pollInterval)

	page := c.page("/")
	assert.Contains(t, page, "Connected: "+model.ShortAddress(strings.ToLower(bob.Hex())))
	assert.Contains(t, page, "Owner: "+alice.Hex())
	assert.NotContains(t, page, "Owner: You")

	// when
	m.Node.SetAccounts()

	// then
	assert.Eventually(t, func() bool {
		var status controller.WalletResponse
		c.getJSON("/api/wallet", &status)
		return status.Account == ""
	}, 5*time.Second, pollInterval)
	assert.Contains(t, c.page("/"), "Please connect your wallet to interact with the marketplace")
}

func TestMarketplaceAPI(t *testing.T) {
	// given
	m := StartMarketplace(t, alice)
	c := newClient(t, m)

	// when
	resp, err := c.http.Post(c.base+"/api/products", "application/json",
		strings.NewReader(`{"name":"Desk","description":"Pine desk","price":"1.25"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	// then
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created controller.CreateProductResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.TxHash)
	assert.Equal(t, uint64(1), created.BlockNumber)
	require.Len(t, created.Products, 1)

	var list controller.ListProductsResponse
	c.getJSON("/api/products", &list)
	assert.Equal(t, []model.Product{{
		ID:          1,
		Name:        "Desk",
		Description: "Pine desk",
		Price:       "1.25",
		Owner:       alice.Hex(),
	}}, list.Products)
}
