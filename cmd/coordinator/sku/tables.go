package sku

// Code tables. Codes absent from a table pass through verbatim.

var typeNames = map[string]string{
	"A": "Apparel",
	"D": "Decor",
	"H": "Home",
	"S": "Stationery",
	"T": "Textile",
}

var subtypeNames = map[string]string{
	"B": "Boys",
	"G": "Girls",
	"M": "Mens",
	"W": "Womens",
	"D": "Wall Decor",
	"T": "Tabletop",
	"K": "Kids",
}

var groupNames = map[string]string{
	"T": "Tee",
	"H": "Hoodie",
	"P": "Poster",
	"C": "Canvas",
	"M": "Mug",
	"B": "Banner",
}

// sizeTables are keyed by the top-level type letter; size codes mean
// different things per product line.
var sizeTables = map[string]map[string]string{
	"A": {
		"01": "XS",
		"02": "S",
		"03": "M",
		"04": "L",
		"05": "XL",
		"06": "XXL",
	},
	"T": {
		"01": "XS",
		"02": "S",
		"03": "M",
		"04": "L",
		"05": "XL",
	},
	"D": {
		"01": "8x10",
		"02": "11x14",
		"03": "16x20",
		"04": "24x36",
	},
	"H": {
		"01": "Standard",
		"02": "Queen",
		"03": "King",
	},
}

var categories = map[string]string{
	"A": "apparel",
	"D": "decor",
	"H": "home",
	"S": "stationery",
	"T": "textile",
}

var divisions = map[string]string{
	"A": "softlines",
	"T": "softlines",
	"S": "softlines",
	"D": "hardlines",
	"H": "hardlines",
}
