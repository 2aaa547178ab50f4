package routers_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"dentalshop/cache"
	"dentalshop/config"
	"dentalshop/events"
	"dentalshop/handlers"
	"dentalshop/jwt"
	"dentalshop/logger"
	"dentalshop/mail"
	"dentalshop/models"
	"dentalshop/routers"
	"dentalshop/storage"
	"dentalshop/testutil"
	"dentalshop/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPassword = "Secret#123"

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	keyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		testKey = key
	})
	return testKey
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testServer struct {
	t         *testing.T
	db        *gorm.DB
	router    *gin.Engine
	mailer    *mail.Memory
	publisher *recordingPublisher
	storage   *storage.LocalDisk
}

type apiResponse struct {
	Message string                `json:"message"`
	Error   string                `json:"error"`
	Data    json.RawMessage       `json:"data"`
	Meta    *utils.PageMeta       `json:"meta"`
	Details []handlers.FieldError `json:"details"`
}

type call struct {
	method  string
	path    string
	body    interface{}
	token   string
	cookies []*http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithCache(t, cache.New(nil))
}

func newTestServerWithCache(t *testing.T, c *cache.Cache) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	require.NoError(t, config.SeedSettings(db))

	cfg := config.Default()
	cfg.App.Env = "test"
	cfg.Auth.RequireVerifiedEmail = true

	disk := storage.NewLocalDisk(t.TempDir(), cfg.Storage.LocalURL)
	mailer := &mail.Memory{}
	publisher := &recordingPublisher{}
	svc := &handlers.Services{
		Config:  cfg,
		Cache:   c,
		JWT:     jwt.NewManager(signingKey(t)),
		Mailer:  mailer,
		Storage: disk,
		Events:  publisher,
	}

	return &testServer{
		t:         t,
		db:        db,
		router:    routers.SetupRouters(db, svc, logger.New("test", "error", io.Discard)),
		mailer:    mailer,
		publisher: publisher,
		storage:   disk,
	}
}

func (s *testServer) do(c call) (*httptest.ResponseRecorder, apiResponse) {
	s.t.Helper()

	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(s.t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func (s *testServer) createUser(role, email string, verified bool) models.User {
	s.t.Helper()
	hashed, err := utils.HashPassword(testPassword)
	require.NoError(s.t, err)
	user := models.User{
		Name:          "Dr. " + email,
		Email:         email,
		Password:      hashed,
		Role:          role,
		Status:        models.UserStatusActive,
		EmailVerified: verified,
	}
	require.NoError(s.t, s.db.Create(&user).Error)
	return user
}

func (s *testServer) login(email string) string {
	s.t.Helper()
	w, resp := s.do(call{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"email": email, "password": testPassword}})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(resp.Data, &data))
	require.NotEmpty(s.t, data.Token)
	return data.Token
}

func (s *testServer) adminToken() string {
	s.createUser(models.RoleAdmin, "admin@clinic.test", true)
	return s.login("admin@clinic.test")
}

func (s *testServer) createProduct(name, sku, price string, stock int) models.Product {
	s.t.Helper()
	product := models.Product{
		Name:           name,
		Slug:           utils.Slugify(name),
		SKU:            sku,
		Price:          decimal.RequireFromString(price),
		StockQuantity:  stock,
		Active:         true,
		Images:         []string{},
		Specifications: map[string]string{},
	}
	require.NoError(s.t, s.db.Create(&product).Error)
	return product
}

func (s *testServer) stock(productID uint) int {
	s.t.Helper()
	var product models.Product
	require.NoError(s.t, s.db.Unscoped().First(&product, productID).Error)
	return product.StockQuantity
}

func decodeData(t *testing.T, resp apiResponse, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, dest), string(resp.Data))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func multipartImage(t *testing.T, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func detailFields(resp apiResponse) []string {
	fields := make([]string, 0, len(resp.Details))
	for _, d := range resp.Details {
		fields = append(fields, d.Field)
	}
	return fields
}

func TestProductAdministration(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()
	s.createUser(models.RoleCustomer, "buyer@clinic.test", true)
	customer := s.login("buyer@clinic.test")

	payload := gin.H{
		"name":          "Ultrasonic Scaler",
		"sku":           "SC-100",
		"price":         "249.90",
		"stockQuantity": 12,
		"brand":         "Woodpecker",
	}

	w, _ := s.do(call{method: http.MethodPost, path: "/api/products", body: payload})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(call{method: http.MethodPost, path: "/api/products", body: payload, token: customer})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp := s.do(call{method: http.MethodPost, path: "/api/products", body: payload, token: admin})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Product
	decodeData(t, resp, &created)
	assert.Equal(t, "ultrasonic-scaler", created.Slug)
	assert.True(t, created.Active)
	assert.True(t, decimal.RequireFromString("249.90").Equal(created.Price))

	//重複SKU
	w, resp = s.do(call{method: http.MethodPost, path: "/api/products", body: payload, token: admin})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, detailFields(resp), "sku")

	//同名商品產生不同slug
	payload["sku"] = "SC-101"
	w, resp = s.do(call{method: http.MethodPost, path: "/api/products", body: payload, token: admin})
	require.Equal(t, http.StatusCreated, w.Code)
	var second models.Product
	decodeData(t, resp, &second)
	assert.Equal(t, "ultrasonic-scaler-2", second.Slug)

	w, resp = s.do(call{method: http.MethodGet, path: "/api/products/ultrasonic-scaler"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(call{method: http.MethodPatch, path: "/api/products/" + itoa(second.ID), body: gin.H{"active": false}, token: admin})
	require.Equal(t, http.StatusOK, w.Code)

	//下架商品只有管理員看得到
	w, _ = s.do(call{method: http.MethodGet, path: "/api/products/" + itoa(second.ID)})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, resp = s.do(call{method: http.MethodGet, path: "/api/products"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
	w, resp = s.do(call{method: http.MethodGet, path: "/api/products?includeInactive=true", token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), resp.Meta.Total)

	w, _ = s.do(call{method: http.MethodDelete, path: "/api/products/" + itoa(created.ID), token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(call{method: http.MethodGet, path: "/api/products/" + itoa(created.ID)})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductValidationDetails(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()

	w, resp := s.do(call{method: http.MethodPost, path: "/api/products", body: gin.H{"price": "10"}, token: admin})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed", resp.Error)
	assert.Subset(t, detailFields(resp), []string{"name", "sku", "stockQuantity"})

	w, resp = s.do(call{method: http.MethodPost, path: "/api/products", token: admin, body: gin.H{
		"name": "Mirror", "sku": "MR-1", "price": "-1", "stockQuantity": 1,
	}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, detailFields(resp), "price")

	w, _ = s.do(call{method: http.MethodGet, path: "/api/products?limit=abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(call{method: http.MethodGet, path: "/api/products/abc"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductListFilters(t *testing.T) {
	s := newTestServer(t)
	s.createProduct("Curing Light", "CL-1", "120", 3)
	s.createProduct("Apex Locator", "AL-1", "480", 0)
	s.createProduct("Amalgamator", "AM-1", "60", 8)

	_, resp := s.do(call{method: http.MethodGet, path: "/api/products?sort=price_asc"})
	var products []models.Product
	decodeData(t, resp, &products)
	require.Len(t, products, 3)
	assert.Equal(t, "AM-1", products[0].SKU)
	assert.Equal(t, "AL-1", products[2].SKU)

	_, resp = s.do(call{method: http.MethodGet, path: "/api/products?inStock=true&minPrice=100"})
	decodeData(t, resp, &products)
	require.Len(t, products, 1)
	assert.Equal(t, "CL-1", products[0].SKU)

	_, resp = s.do(call{method: http.MethodGet, path: "/api/products?q=apex"})
	decodeData(t, resp, &products)
	require.Len(t, products, 1)

	w, _ := s.do(call{method: http.MethodGet, path: "/api/products?sort=random"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCategoryDeleteRequiresEmptyCategory(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()

	w, resp := s.do(call{method: http.MethodPost, path: "/api/categories", body: gin.H{"name": "Endodontics"}, token: admin})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var category models.Category
	decodeData(t, resp, &category)
	assert.Equal(t, "endodontics", category.Slug)

	w, _ = s.do(call{method: http.MethodPost, path: "/api/categories", body: gin.H{"name": "Endodontics"}, token: admin})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	product := s.createProduct("Rotary File", "RF-1", "35", 10)
	require.NoError(t, s.db.Model(&product).Update("category_id", category.ID).Error)

	w, _ = s.do(call{method: http.MethodDelete, path: "/api/categories/" + itoa(category.ID), token: admin})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, resp = s.do(call{method: http.MethodGet, path: "/api/categories/endodontics"})
	var withCount struct {
		ProductCount int64 `json:"productCount"`
	}
	decodeData(t, resp, &withCount)
	assert.Equal(t, int64(1), withCount.ProductCount)

	w, _ = s.do(call{method: http.MethodDelete, path: "/api/products/" + itoa(product.ID), token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(call{method: http.MethodDelete, path: "/api/categories/" + itoa(category.ID), token: admin})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnonymousCartAndMerge(t *testing.T) {
	s := newTestServer(t)
	gloves := s.createProduct("Nitrile Gloves", "NG-1", "12.50", 3)
	masks := s.createProduct("Face Masks", "FM-1", "8", 10)
	empty := s.createProduct("Bur Kit", "BK-1", "40", 0)

	w, resp := s.do(call{method: http.MethodPost, path: "/api/cart/items", body: gin.H{"productId": gloves.ID, "quantity": 2}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	//超過庫存時以庫存為上限
	w, resp = s.do(call{method: http.MethodPost, path: "/api/cart/items", body: gin.H{"productId": gloves.ID, "quantity": 5}, cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code)
	var state struct {
		Items []struct {
			ID       uint `json:"id"`
			Quantity int  `json:"quantity"`
		} `json:"items"`
		Total     decimal.Decimal `json:"total"`
		ItemCount int             `json:"itemCount"`
	}
	decodeData(t, resp, &state)
	require.Len(t, state.Items, 1)
	assert.Equal(t, 3, state.Items[0].Quantity)

	w, _ = s.do(call{method: http.MethodPost, path: "/api/cart/items", body: gin.H{"productId": empty.ID, "quantity": 1}, cookies: cookies})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(call{method: http.MethodPost, path: "/api/cart/items", body: gin.H{"productId": masks.ID, "quantity": 1}, cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code)
	w, resp = s.do(call{method: http.MethodPut, path: "/api/cart/items/" + itoa(masks.ID), body: gin.H{"quantity": 4}, cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, resp, &state)
	assert.Equal(t, 7, state.ItemCount)
	assert.True(t, decimal.RequireFromString("69.5").Equal(state.Total), state.Total.String())

	s.createUser(models.RoleCustomer, "merge@clinic.test", true)
	token := s.login("merge@clinic.test")

	//使用者購物車已有口罩，合併後數量相加
	w, _ = s.do(call{method: http.MethodPost, path: "/api/cart/items", body: gin.H{"productId": masks.ID, "quantity": 2}, token: token})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = s.do(call{method: http.MethodPost, path: "/api/cart/merge", token: token, cookies: cookies})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeData(t, resp, &state)
	assert.Equal(t, 9, state.ItemCount)

	var anonymousCarts int64
	s.db.Model(&models.Cart{}).Where("user_id = 0").Count(&anonymousCarts)
	assert.Zero(t, anonymousCarts)

	w, _ = s.do(call{method: http.MethodPost, path: "/api/cart/merge", token: token})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = s.do(call{method: http.MethodDelete, path: "/api/cart", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, resp, &state)
	assert.Empty(t, state.Items)
}

func TestCartSyncUsesServerPrices(t *testing.T) {
	s := newTestServer(t)
	mirror := s.createProduct("Mouth Mirror", "MM-1", "5", 2)
	s.createUser(models.RoleCustomer, "sync@clinic.test", true)
	token := s.login("sync@clinic.test")

	w, resp := s.do(call{method: http.MethodPost, path: "/api/cart/sync", token: token, body: gin.H{"items": []gin.H{
		{"productId": mirror.ID, "quantity": 5},
		{"productId": 9999, "quantity": 1},
	}}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var state struct {
		Total     decimal.Decimal `json:"total"`
		ItemCount int             `json:"itemCount"`
	}
	decodeData(t, resp, &state)
	assert.Equal(t, 2, state.ItemCount)
	assert.True(t, decimal.NewFromInt(10).Equal(state.Total))
}

func TestWishlist(t *testing.T) {
	s := newTestServer(t)
	forceps := s.createProduct("Extraction Forceps", "EF-1", "55", 4)
	probe := s.createProduct("Periodontal Probe", "PP-1", "9", 4)

	w, _ := s.do(call{method: http.MethodGet, path: "/api/wishlist"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s.createUser(models.RoleCustomer, "wish@clinic.test", true)
	token := s.login("wish@clinic.test")

	w, _ = s.do(call{method: http.MethodPost, path: "/api/wishlist", body: gin.H{"productId": forceps.ID}, token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, resp := s.do(call{method: http.MethodPost, path: "/api/wishlist/toggle", body: gin.H{"productId": probe.ID}, token: token})
	require.Equal(t, http.StatusOK, w.Code)
	var products []models.Product
	decodeData(t, resp, &products)
	require.Len(t, products, 2)
	assert.Equal(t, forceps.ID, products[0].ID)

	_, resp = s.do(call{method: http.MethodPost, path: "/api/wishlist/toggle", body: gin.H{"productId": forceps.ID}, token: token})
	decodeData(t, resp, &products)
	require.Len(t, products, 1)
	assert.Equal(t, probe.ID, products[0].ID)

	//重新加入已移除的商品不違反唯一索引
	w, _ = s.do(call{method: http.MethodPost, path: "/api/wishlist", body: gin.H{"productId": forceps.ID}, token: token})
	require.Equal(t, http.StatusOK, w.Code)

	//同步時以瀏覽器的順序為準
	w, _ = s.do(call{method: http.MethodPost, path: "/api/wishlist/sync", body: gin.H{"productIds": []uint{forceps.ID, probe.ID}}, token: token})
	require.Equal(t, http.StatusOK, w.Code)
	_, resp = s.do(call{method: http.MethodGet, path: "/api/wishlist", token: token})
	decodeData(t, resp, &products)
	require.Len(t, products, 2)
	assert.Equal(t, []uint{forceps.ID, probe.ID}, []uint{products[0].ID, products[1].ID})

	_, resp = s.do(call{method: http.MethodPost, path: "/api/wishlist/sync", body: gin.H{"productIds": []uint{probe.ID, probe.ID, 4242}}, token: token})
	decodeData(t, resp, &products)
	require.Len(t, products, 1)

	w, _ = s.do(call{method: http.MethodDelete, path: "/api/wishlist/" + itoa(probe.ID), token: token})
	require.Equal(t, http.StatusOK, w.Code)
	_, resp = s.do(call{method: http.MethodGet, path: "/api/wishlist", token: token})
	decodeData(t, resp, &products)
	assert.Empty(t, products)
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken()

	upload := func(filename string, content []byte) *httptest.ResponseRecorder {
		body, contentType := multipartImage(t, filename, content)
		req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+admin)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	w := upload("Chair Photo.PNG", []byte("\x89PNG fake"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			URL  string `json:"url"`
			Path string `json:"path"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Data.Path, "products/chair-photo_")
	assert.True(t, s.storage.Exists(context.Background(), resp.Data.Path))

	w = upload("notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload("chair-side.webp", []byte("RIFF fake"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cover := resp.Data
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	side := resp.Data

	//刪除商品時移除只屬於該商品的圖片
	w, created := s.do(call{method: http.MethodPost, path: "/api/products", token: admin, body: gin.H{
		"name": "Patient Chair", "sku": "PC-1", "price": "1200", "stockQuantity": 1,
		"imageUrl": cover.URL, "images": []string{side.URL},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var chair models.Product
	decodeData(t, created, &chair)
	w, _ = s.do(call{method: http.MethodPost, path: "/api/products", token: admin, body: gin.H{
		"name": "Patient Chair Deluxe", "sku": "PC-2", "price": "1800", "stockQuantity": 1,
		"images": []string{side.URL},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do(call{method: http.MethodDelete, path: "/api/products/" + itoa(chair.ID), token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.storage.Exists(context.Background(), cover.Path))
	assert.True(t, s.storage.Exists(context.Background(), side.Path))
}
