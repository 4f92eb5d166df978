package overpass

import "github.com/samirrijal/kopimap/internal/core/domain"

// fallbackCafes is served when no Overpass endpoint answers.
var fallbackCafes = []domain.Cafe{
	{
		ID:        "fallback-1",
		Name:      "Kopi Kenangan Tunjungan Plaza",
		Location:  domain.GeoPoint{Lat: -7.2623, Lon: 112.7393},
		Address:   "Jl. Basuki Rahmat, 8-12, Tegalsari, Surabaya",
		Amenities: domain.Amenities{Wifi: true, Takeaway: true, AirConditioning: true},
	},
	{
		ID:        "fallback-2",
		Name:      "Starbucks Galaxy Mall",
		Location:  domain.GeoPoint{Lat: -7.2751, Lon: 112.7815},
		Address:   "Jl. Dharmahusada Indah Timur, 35-37, Mulyorejo, Surabaya",
		Amenities: domain.Amenities{Wifi: true, Takeaway: true, AirConditioning: true},
	},
	{
		ID:        "fallback-3",
		Name:      "Titik Temu Coffee",
		Location:  domain.GeoPoint{Lat: -7.2905, Lon: 112.7380},
		Address:   "Jl. Raya Darmo, Wonokromo, Surabaya",
		Cuisine:   "coffee_shop",
		Amenities: domain.Amenities{Wifi: true, OutdoorSeating: true, Takeaway: true},
	},
	{
		ID:        "fallback-4",
		Name:      "Djournal Coffee Pakuwon Mall",
		Location:  domain.GeoPoint{Lat: -7.2892, Lon: 112.6761},
		Address:   "Jl. Puncak Indah Lontar, 2, Sambikerep, Surabaya",
		Amenities: domain.Amenities{Wifi: true, AirConditioning: true},
	},
	{
		ID:        "fallback-5",
		Name:      "Kedai Kopi Tjap Dua Tangan",
		Location:  domain.GeoPoint{Lat: -7.2458, Lon: 112.7378},
		Address:   "Jl. Kembang Jepun, Pabean Cantian, Surabaya",
		Cuisine:   "coffee_shop",
		Amenities: domain.Amenities{OutdoorSeating: true, Smoking: "yes"},
	},
	{
		ID:        "fallback-6",
		Name:      "Noach Cafe & Bistro",
		Location:  domain.GeoPoint{Lat: -7.2821, Lon: 112.7396},
		Address:   "Jl. Raya Darmo, 79, Tegalsari, Surabaya",
		Cuisine:   "western",
		Amenities: domain.Amenities{Wifi: true, OutdoorSeating: true, AirConditioning: true},
	},
	{
		ID:        "fallback-7",
		Name:      "Libreria Eatery",
		Location:  domain.GeoPoint{Lat: -7.2632, Lon: 112.7508},
		Address:   "Jl. Raya Gubeng, Gubeng, Surabaya",
		Amenities: domain.Amenities{Wifi: true, AirConditioning: true},
	},
	{
		ID:        "fallback-8",
		Name:      "Carpentier Kitchen",
		Location:  domain.GeoPoint{Lat: -7.2835, Lon: 112.7539},
		Address:   "Jl. Raya Ngagel Jaya Selatan, Gubeng, Surabaya",
		Amenities: domain.Amenities{Wifi: true, OutdoorSeating: true, AirConditioning: true},
	},
	{
		ID:        "fallback-9",
		Name:      "Kopi Janji Jiwa Manyar",
		Location:  domain.GeoPoint{Lat: -7.2812, Lon: 112.7701},
		Address:   "Jl. Manyar Kertoarjo, Mulyorejo, Surabaya",
		Amenities: domain.Amenities{Takeaway: true},
	},
	{
		ID:        "fallback-10",
		Name:      "Warung Kopi Cak Cuk",
		Location:  domain.GeoPoint{Lat: -7.3191, Lon: 112.7312},
		Address:   "Jl. Ahmad Yani, Wonocolo, Surabaya",
		Cuisine:   "coffee_shop",
		Amenities: domain.Amenities{OutdoorSeating: true, Smoking: "yes"},
	},
}

// FallbackCafes returns a fresh copy of the built-in list.
func FallbackCafes() []domain.Cafe {
	out := make([]domain.Cafe, len(fallbackCafes))
	for i, c := range fallbackCafes {
		c.Source = domain.SourceOSM
		out[i] = c
	}
	return out
}
