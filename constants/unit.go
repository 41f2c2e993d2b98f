package constants

// DefaultUnit is assumed when an order line carries no unit token.
const DefaultUnit = "EA"

// UnitAliases maps spellings seen on orders and in emails to a canonical unit code.
var UnitAliases = map[string]string{
	"ea":      "EA",
	"each":    "EA",
	"pc":      "EA",
	"pcs":     "EA",
	"piece":   "EA",
	"pieces":  "EA",
	"unit":    "EA",
	"units":   "EA",
	"pail":    "PAIL",
	"pails":   "PAIL",
	"pl":      "PAIL",
	"drum":    "DRUM",
	"drums":   "DRUM",
	"dr":      "DRUM",
	"tote":    "TOTE",
	"totes":   "TOTE",
	"case":    "CASE",
	"cases":   "CASE",
	"cs":      "CASE",
	"box":     "BOX",
	"boxes":   "BOX",
	"bx":      "BOX",
	"bag":     "BAG",
	"bags":    "BAG",
	"bg":      "BAG",
	"carton":  "CTN",
	"cartons": "CTN",
	"ctn":     "CTN",
	"pack":    "PK",
	"packs":   "PK",
	"pk":      "PK",
	"tube":    "TUBE",
	"tubes":   "TUBE",
	"can":     "CAN",
	"cans":    "CAN",
	"kg":      "KG",
	"kgs":     "KG",
	"lb":      "LB",
	"lbs":     "LB",
	"l":       "L",
	"litre":   "L",
	"liter":   "L",
	"litres":  "L",
	"liters":  "L",
	"gal":     "GAL",
	"gallon":  "GAL",
	"gallons": "GAL",
	"keg":     "KEG",
	"kegs":    "KEG",
	"pallet":  "PLT",
	"pallets": "PLT",
	"skid":    "PLT",
	"skids":   "PLT",
}
