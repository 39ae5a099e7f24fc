package carrier_test

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/standing-orders/carrier"
	"github.com/warp/standing-orders/masterdata"
	"github.com/warp/standing-orders/recurring"
)

func sampleTemplate() *recurring.Template {
	return &recurring.Template{
		ID:       "tpl-1",
		Interval: recurring.NMonthly(1),
		Customer: recurring.Party{
			Name:       "田中食品",
			PostalCode: "1500001",
			Address:    "東京都渋谷区神宮前1-2-3",
			Phone:      "0312345678",
		},
		Recipient: recurring.Party{
			Name:       "山田花子",
			PostalCode: "5300001",
			Address:    "大阪府大阪市北区梅田1-2-3グランフロント大阪タワーA12F",
			Phone:      "0698765432",
		},
		Shipping: recurring.Shipping{
			DeliveryMethod:   "Yamato Transport",
			DeliveryTimeBand: "午前中",
			InvoiceType:      "発払い",
			CoolClass:        "冷蔵",
			CargoHandling:    []string{"ナマモノ", "天地無用", "ワレ物注意"},
		},
	}
}

func sampleOrder() carrier.Order {
	return carrier.Order{
		OrderID:      "ord-1",
		OrderDate:    recurring.MustParseDate("2025-03-03"),
		ShippingDate: recurring.MustParseDate("2025-03-10"),
		DeliveryDate: recurring.MustParseDate("2025-03-12"),
		Lines: []recurring.Line{
			{ProductName: "Tomatoes", UnitPrice: decimal.NewFromInt(1200), Quantity: 2},
			{ProductName: "Cucumbers", UnitPrice: decimal.NewFromInt(400), Quantity: 3},
		},
	}
}

// =============================================================================
// FORMATTERS
// =============================================================================

func TestFormat_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	codes := masterdata.Default()

	for _, f := range []carrier.Formatter{carrier.Yamato{}, carrier.Sagawa{}} {
		t.Run(string(f.Kind()), func(t *testing.T) {
			row := f.Format(sampleTemplate(), sampleOrder(), codes)
			assert.Equal(t, f.Kind(), row.Carrier)
			g.Assert(t, string(f.Kind()), []byte(row.String()))
		})
	}
}

func TestFormat_UnknownLabelsGiveEmptyCodes(t *testing.T) {
	tpl := sampleTemplate()
	tpl.Shipping.CoolClass = "Dry ice"
	tpl.Shipping.CargoHandling = []string{"Fragile art"}

	row := carrier.Sagawa{}.Format(tpl, sampleOrder(), masterdata.Default())

	assert.Empty(t, row.Get("cool_class"))
	assert.Empty(t, row.Get("seal_1"))
	assert.Equal(t, "1", row.Get("invoice_type"))
}

func TestFormat_NilLookup(t *testing.T) {
	row := carrier.Yamato{}.Format(sampleTemplate(), sampleOrder(), nil)
	assert.Empty(t, row.Get("cool_class"))
	assert.Equal(t, "ord-1", row.Get("order_id"))
}

func TestExportRow_Row(t *testing.T) {
	row := carrier.Yamato{}.Format(sampleTemplate(), sampleOrder(), masterdata.Default()).Row()

	assert.Equal(t, "yamato", row["carrier"])
	assert.Equal(t, "ord-1", row.Key(recurring.TableYamatoExport))
	assert.Equal(t, "0698765432", row["recipient_phone"])
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestRegistry_Select(t *testing.T) {
	r := carrier.NewRegistry(nil)

	tests := []struct {
		method string
		want   carrier.Kind
		ok     bool
	}{
		{"Yamato Transport", carrier.KindYamato, true},
		{"  yamato transport ", carrier.KindYamato, true},
		{"ヤマト運輸", carrier.KindYamato, true},
		{"Yamato Transport (cool)", carrier.KindYamato, true},
		{"佐川急便", carrier.KindSagawa, true},
		{"Sagawa Express e-hiden", carrier.KindSagawa, true},
		{"Store pickup", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			f, ok := r.Select(tt.method)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, f.Kind())
			}
		})
	}
}

func TestRegistry_CustomAliases(t *testing.T) {
	r := carrier.NewRegistry(map[carrier.Kind][]string{
		carrier.KindSagawa: {"SGH"},
	})

	f, ok := r.Select("SGH")
	require.True(t, ok)
	assert.Equal(t, carrier.KindSagawa, f.Kind())

	_, ok = r.Select("Sagawa Express")
	assert.False(t, ok)

	f, ok = r.Select("Yamato")
	require.True(t, ok)
	assert.Equal(t, carrier.KindYamato, f.Kind())

	kinds := []carrier.Kind{}
	for _, f := range r.Formatters() {
		kinds = append(kinds, f.Kind())
	}
	assert.Equal(t, []carrier.Kind{carrier.KindYamato, carrier.KindSagawa}, kinds)
}

// =============================================================================
// ADDRESS SPLIT
// =============================================================================

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		in        string
		primary   string
		secondary string
	}{
		{"", "", ""},
		{"Tokyo", "Tokyo", ""},
		{"東京都渋谷区神宮前1-2-3", "東京都渋谷区神宮前1-2-3", ""},
		{"1234567890ABCDEFGHIJ", "1234567890ABCDEF", "GHIJ"},
		{"北海道札幌市中央区北一条西二丁目一番地", "北海道札幌市中央区北一条西二丁目", "一番地"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, s := carrier.SplitAddress(tt.in)
			assert.Equal(t, tt.primary, p)
			assert.Equal(t, tt.secondary, s)
			assert.Equal(t, tt.in, p+s)
		})
	}
}

func TestSplitAddress_CombiningMarksCountOnce(t *testing.T) {
	// GIVEN: 15 plain letters followed by "e" + combining acute, then more
	in := strings.Repeat("a", 15) + "e\u0301" + "tail"

	p, s := carrier.SplitAddress(in)

	// THEN: The accented letter stays whole in the first column
	assert.Equal(t, strings.Repeat("a", 15)+"e\u0301", p)
	assert.Equal(t, "tail", s)
	assert.Equal(t, 20, carrier.CharCount(in))
}

func TestSplitAddress_NeverLosesText(t *testing.T) {
	for n := 0; n <= 40; n++ {
		in := strings.Repeat("番", n)
		p, s := carrier.SplitAddress(in)
		assert.Equal(t, in, p+s)
		assert.LessOrEqual(t, carrier.CharCount(p), carrier.AddressLimit)
	}
}
