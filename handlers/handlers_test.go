package handlers

import (
	"testing"
	"time"

	"dentalshop/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeOrderLines(t *testing.T) {
	merged := mergeOrderLines([]orderLineRequest{
		{ProductID: 3, Quantity: 1},
		{ProductID: 1, Quantity: 2},
		{ProductID: 3, Quantity: 4},
	})
	assert.Equal(t, []orderLineRequest{
		{ProductID: 3, Quantity: 5},
		{ProductID: 1, Quantity: 2},
	}, merged)
}

func TestShippingFeeAndTax(t *testing.T) {
	settings := storeSettings{
		models.SettingShippingFlatRate:      "15.00",
		models.SettingFreeShippingThreshold: "500",
		models.SettingTaxRate:               "5",
	}

	assert.True(t, decimal.NewFromInt(15).Equal(shippingFee(settings, decimal.NewFromInt(499))))
	assert.True(t, shippingFee(settings, decimal.NewFromInt(500)).IsZero())
	assert.True(t, decimal.RequireFromString("6.17").Equal(orderTax(settings, decimal.RequireFromString("123.45"))))

	//門檻為0時一律收運費
	settings[models.SettingFreeShippingThreshold] = "0"
	assert.True(t, decimal.NewFromInt(15).Equal(shippingFee(settings, decimal.NewFromInt(10000))))

	//設定值錯誤時視為0
	settings[models.SettingShippingFlatRate] = "-3"
	settings[models.SettingTaxRate] = "abc"
	assert.True(t, shippingFee(settings, decimal.NewFromInt(1)).IsZero())
	assert.True(t, orderTax(settings, decimal.NewFromInt(100)).IsZero())
}

func TestStoreSettingsInt(t *testing.T) {
	settings := storeSettings{"a": "8", "b": "0", "c": "x", "d": "-1"}
	assert.Equal(t, 8, settings.Int("a", 5))
	assert.Equal(t, 5, settings.Int("b", 5))
	assert.Equal(t, 5, settings.Int("c", 5))
	assert.Equal(t, 5, settings.Int("missing", 5))

	//允許0的設定
	assert.Equal(t, 0, settings.IntMin("b", 5, 0))
	assert.Equal(t, 5, settings.IntMin("d", 5, 0))
	assert.Equal(t, 5, settings.IntMin("c", 5, 0))
}

func TestDecodeSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []models.Setting
	}{
		{
			name: "wrapped",
			body: `{"settings": {"tax_rate": 5, "store_name": "Smile"}}`,
			want: []models.Setting{{Key: "store_name", Value: "Smile"}, {Key: "tax_rate", Value: "5"}},
		},
		{
			name: "bare map",
			body: `{"currency": "TWD", "store_phone": null}`,
			want: []models.Setting{{Key: "currency", Value: "TWD"}, {Key: "store_phone", Value: ""}},
		},
		{
			name: "array",
			body: ` [{"key": "banner", "value": true, "group": "store"}]`,
			want: []models.Setting{{Key: "banner", Value: "true", Group: "store"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeSettings([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := decodeSettings([]byte("  "))
	assert.Error(t, err)
	_, err = decodeSettings([]byte(`"text"`))
	assert.Error(t, err)
}

func TestValidateSettings(t *testing.T) {
	settings := []models.Setting{
		{Key: " tax_rate ", Value: " 7.5 "},
		{Key: "note", Value: "hello"},
		{Key: "shipping_flat_rate", Value: "-1"},
		{Key: "x", Value: "1", Group: "billing"},
		{Key: ""},
	}

	details := validateSettings(settings)
	assert.Equal(t, []FieldError{
		{Field: "shipping_flat_rate", Message: "必須為非負數"},
		{Field: "x", Message: "群組錯誤"},
		{Field: "settings[4].key", Message: "長度需為1-100"},
	}, details)
	assert.Equal(t, "tax_rate", settings[0].Key)
	assert.Equal(t, "7.5", settings[0].Value)
	assert.Equal(t, models.SettingGroupShipping, settings[0].Group)
	assert.Equal(t, models.SettingGroupGeneral, settings[1].Group)
}

func TestValidateIntegerSettings(t *testing.T) {
	settings := []models.Setting{
		{Key: models.SettingSessionTimeoutHours, Value: "100000"},
		{Key: models.SettingMaxLoginAttempts, Value: "2.5"},
		{Key: models.SettingLowStockThreshold, Value: "0"},
	}
	assert.Equal(t, []FieldError{
		{Field: models.SettingSessionTimeoutHours, Message: "必須為1-720的整數"},
		{Field: models.SettingMaxLoginAttempts, Message: "必須為1-20的整數"},
	}, validateSettings(settings))

	settings = []models.Setting{
		{Key: models.SettingSessionTimeoutHours, Value: "720"},
		{Key: models.SettingMaxLoginAttempts, Value: "1"},
		{Key: models.SettingLowStockThreshold, Value: "-1"},
	}
	assert.Equal(t, []FieldError{
		{Field: models.SettingLowStockThreshold, Message: "必須為不小於0的整數"},
	}, validateSettings(settings))
}

func TestParseTimeQuery(t *testing.T) {
	from, err := parseTimeQuery("2024-03-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), from)

	to, err := parseTimeQuery("2024-03-01", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, 999999999, time.UTC), to)

	exact, err := parseTimeQuery("2024-03-01T08:00:00+08:00", true)
	require.NoError(t, err)
	assert.True(t, exact.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	_, err = parseTimeQuery("03/01/2024", false)
	assert.Error(t, err)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%50\\% off\\_x%", likePattern("  50% OFF_x "))
}
