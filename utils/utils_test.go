package utils_test

import (
	"dentalshop/models"
	"dentalshop/testutil"
	"dentalshop/utils"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Dental Chair X100":       "dental-chair-x100",
		"  Ultrasonic -- Scaler ": "ultrasonic-scaler",
		"LED Curing Light (Pro)":  "led-curing-light-pro",
		"???":                     "item",
		"":                        "item",
		"Autoclave_23L":           "autoclave-23l",
	}
	for in, want := range cases {
		assert.Equal(t, want, utils.Slugify(in), in)
	}
}

func TestUniqueSlug(t *testing.T) {
	db := testutil.NewDB(t)

	slug, err := utils.UniqueSlug(db, &models.Category{}, "implants", 0)
	require.NoError(t, err)
	assert.Equal(t, "implants", slug)

	first := models.Category{Name: "Implants", Slug: "implants"}
	require.NoError(t, db.Create(&first).Error)

	slug, err = utils.UniqueSlug(db, &models.Category{}, "implants", 0)
	require.NoError(t, err)
	assert.Equal(t, "implants-2", slug)

	// 自己的slug不算重複
	slug, err = utils.UniqueSlug(db, &models.Category{}, "implants", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "implants", slug)

	second := models.Category{Name: "Implants 2", Slug: "implants-2"}
	require.NoError(t, db.Create(&second).Error)
	require.NoError(t, db.Delete(&second).Error)

	// 軟刪除的資料仍佔用slug
	slug, err = utils.UniqueSlug(db, &models.Category{}, "implants", 0)
	require.NoError(t, err)
	assert.Equal(t, "implants-3", slug)
}

func newContext(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return c
}

func TestParsePagination(t *testing.T) {
	p, err := utils.ParsePagination(newContext(""))
	require.NoError(t, err)
	assert.Equal(t, utils.Pagination{Page: 1, Limit: 20}, p)
	assert.Equal(t, 0, p.Offset())

	p, err = utils.ParsePagination(newContext("page=3&limit=500"))
	require.NoError(t, err)
	assert.Equal(t, 100, p.Limit)
	assert.Equal(t, 200, p.Offset())

	p, err = utils.ParsePagination(newContext("page=100000&limit=100"))
	require.NoError(t, err)
	assert.Equal(t, 9999900, p.Offset())

	for _, q := range []string{"page=0", "page=abc", "limit=0", "limit=-5", "limit=x", "page=100001", "page=9223372036854775807"} {
		_, err := utils.ParsePagination(newContext(q))
		assert.ErrorIs(t, err, utils.ErrInvalidPagination, q)
	}
}

func TestPageMeta(t *testing.T) {
	meta := utils.Pagination{Page: 2, Limit: 10}.Meta(25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrevious)

	meta = utils.Pagination{Page: 1, Limit: 20}.Meta(0)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasNext)
	assert.False(t, meta.HasPrevious)

	meta = utils.Pagination{Page: 3, Limit: 10}.Meta(30)
	assert.False(t, meta.HasNext)
}

func TestNewOrderNumber(t *testing.T) {
	now := time.UnixMilli(1718000000123)
	number := utils.NewOrderNumber(now)
	assert.Regexp(t, regexp.MustCompile(`^ORD-1718000000123-[0-9A-F]{6}$`), number)
	assert.NotEqual(t, number, utils.NewOrderNumber(now))
}

func TestValidatePassword(t *testing.T) {
	assert.True(t, utils.ValidatePassword("Secret#123"))
	assert.False(t, utils.ValidatePassword("Sh0rt!"))
	assert.False(t, utils.ValidatePassword("nouppercase1!"))
	assert.False(t, utils.ValidatePassword("NOLOWERCASE1!"))
	assert.False(t, utils.ValidatePassword("NoDigits!!"))
	assert.False(t, utils.ValidatePassword("NoSymbol123"))
	assert.False(t, utils.ValidatePassword("Has Space1!"))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, utils.ValidateEmail("dr.chen@clinic.com.tw"))
	assert.False(t, utils.ValidateEmail("not-an-email"))
	assert.False(t, utils.ValidateEmail("a@b"))
}

func TestHashPassword(t *testing.T) {
	hashed, err := utils.HashPassword("Secret#123")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret#123", hashed)
	assert.True(t, utils.CheckPassword(hashed, "Secret#123"))
	assert.False(t, utils.CheckPassword(hashed, "Secret#124"))
}
