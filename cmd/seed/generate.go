package main

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"

	"github.com/utafrali/storefront-search/internal/service"
)

// productNamespace keeps generated ids stable across runs.
var productNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("storefront-search/seed"))

type categoryDef struct {
	Name   string
	Types  []string
	Brands []string
	// MinPrice and MaxPrice are in VND.
	MinPrice int64
	MaxPrice int64
	Weight   float64
}

var categories = []categoryDef{
	{"Điện thoại", []string{"Điện thoại", "Smartphone"}, []string{"Apple", "Samsung", "Xiaomi", "Oppo"}, 2_000_000, 40_000_000, 0.2},
	{"Laptop", []string{"Laptop", "Máy tính xách tay"}, []string{"Apple", "Dell", "Asus", "Lenovo"}, 10_000_000, 60_000_000, 0.15},
	{"Tai nghe", []string{"Tai nghe", "Tai nghe không dây"}, []string{"Sony", "JBL", "Apple"}, 300_000, 9_000_000, 0.15},
	{"Thời trang nam", []string{"Áo khoác", "Áo thun", "Quần jean"}, []string{"Uniqlo", "Routine", "Coolmate"}, 150_000, 2_000_000, 0.2},
	{"Mỹ phẩm", []string{"Kem chống nắng", "Sữa rửa mặt", "Son môi"}, []string{"La Roche-Posay", "Cetaphil", "Innisfree"}, 100_000, 1_500_000, 0.15},
	{"Gia dụng", []string{"Nồi chiên không dầu", "Máy xay sinh tố", "Bàn ủi"}, []string{"Philips", "Sunhouse", "Lock&Lock"}, 200_000, 5_000_000, 0.15},
}

var (
	adjectives = []string{"Cao cấp", "Chính hãng", "Mới", "Siêu bền", "Thế hệ mới", "Phiên bản đặc biệt"}
	colors     = []string{"Đen", "Trắng", "Xanh", "Đỏ", "Bạc", "Hồng"}
	locations  = []string{"Hà Nội", "TP. Hồ Chí Minh", "Đà Nẵng", "Hải Phòng", "Cần Thơ"}
	seasonTags = []string{"mùa hè", "mùa đông", "mùa xuân", "mùa thu", "tết", "quanh năm"}

	descriptionTemplates = []string{
		"%s chính hãng, bảo hành 12 tháng.",
		"%s được yêu thích nhất tháng này, giao hàng nhanh toàn quốc.",
		"%s chất lượng cao với giá tốt nhất.",
	}
)

// generateProducts builds n products deterministically from seed. Categories
// receive products in proportion to their weight.
func generateProducts(n int, seed uint64) []service.IndexProductInput {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	products := make([]service.IndexProductInput, 0, n)

	remaining := n
	for ci, cat := range categories {
		count := int(float64(n) * cat.Weight)
		if ci == len(categories)-1 {
			count = remaining
		}
		remaining -= count

		for j := 0; j < count; j++ {
			idx := len(products)
			productType := cat.Types[rng.IntN(len(cat.Types))]
			brand := cat.Brands[j%len(cat.Brands)]
			name := fmt.Sprintf("%s %s %s - %s",
				productType, brand, adjectives[rng.IntN(len(adjectives))], colors[rng.IntN(len(colors))])

			// Prices are rounded down to the nearest thousand dong.
			price := cat.MinPrice + rng.Int64N(cat.MaxPrice-cat.MinPrice)
			price = price / 1000 * 1000

			var original *int64
			if rng.IntN(3) == 0 {
				op := price + price/100*int64(5+rng.IntN(30))
				original = &op
			}

			products = append(products, service.IndexProductInput{
				ID:            uuid.NewSHA1(productNamespace, []byte(strconv.Itoa(idx))).String(),
				Name:          name,
				Description:   fmt.Sprintf(descriptionTemplates[rng.IntN(len(descriptionTemplates))], productType),
				Price:         price,
				OriginalPrice: original,
				Rating:        float64(30+rng.IntN(21)) / 10,
				ReviewCount:   rng.IntN(5000),
				Category:      cat.Name,
				Brand:         brand,
				Location:      locations[rng.IntN(len(locations))],
				InStock:       rng.IntN(10) != 0,
				FreeShipping:  rng.IntN(2) == 0,
				SoldCount:     rng.IntN(20000),
				Tags:          []string{seasonTags[rng.IntN(len(seasonTags))]},
			})
		}
	}
	return products
}

// batches splits products into chunks of at most size.
func batches(products []service.IndexProductInput, size int) [][]service.IndexProductInput {
	var out [][]service.IndexProductInput
	for start := 0; start < len(products); start += size {
		out = append(out, products[start:min(start+size, len(products))])
	}
	return out
}
