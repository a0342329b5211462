package models

// Micronutrient names a vitamin or mineral in the canonical set.
type Micronutrient string

const (
	Calcium         Micronutrient = "calcium"
	Iron            Micronutrient = "iron"
	Magnesium       Micronutrient = "magnesium"
	Phosphorus      Micronutrient = "phosphorus"
	Potassium       Micronutrient = "potassium"
	Sodium          Micronutrient = "sodium"
	Zinc            Micronutrient = "zinc"
	Copper          Micronutrient = "copper"
	Manganese       Micronutrient = "manganese"
	Selenium        Micronutrient = "selenium"
	Iodine          Micronutrient = "iodine"
	Chromium        Micronutrient = "chromium"
	Molybdenum      Micronutrient = "molybdenum"
	VitaminA        Micronutrient = "vitamin_a"
	VitaminC        Micronutrient = "vitamin_c"
	VitaminD        Micronutrient = "vitamin_d"
	VitaminE        Micronutrient = "vitamin_e"
	VitaminK        Micronutrient = "vitamin_k"
	Thiamin         Micronutrient = "thiamin"
	Riboflavin      Micronutrient = "riboflavin"
	Niacin          Micronutrient = "niacin"
	VitaminB6       Micronutrient = "vitamin_b6"
	Folate          Micronutrient = "folate"
	VitaminB12      Micronutrient = "vitamin_b12"
	Biotin          Micronutrient = "biotin"
	PantothenicAcid Micronutrient = "pantothenic_acid"
	Choline         Micronutrient = "choline"
)

// MicronutrientUnits maps every canonical micronutrient to its unit.
var MicronutrientUnits = map[Micronutrient]string{
	Calcium:         "mg",
	Iron:            "mg",
	Magnesium:       "mg",
	Phosphorus:      "mg",
	Potassium:       "mg",
	Sodium:          "mg",
	Zinc:            "mg",
	Copper:          "mg",
	Manganese:       "mg",
	Selenium:        "mcg",
	Iodine:          "mcg",
	Chromium:        "mcg",
	Molybdenum:      "mcg",
	VitaminA:        "IU",
	VitaminC:        "mg",
	VitaminD:        "IU",
	VitaminE:        "mg",
	VitaminK:        "mcg",
	Thiamin:         "mg",
	Riboflavin:      "mg",
	Niacin:          "mg",
	VitaminB6:       "mg",
	Folate:          "mcg",
	VitaminB12:      "mcg",
	Biotin:          "mcg",
	PantothenicAcid: "mg",
	Choline:         "mg",
}

// AllMicronutrients is the canonical set in a stable order.
var AllMicronutrients = []Micronutrient{
	Calcium, Iron, Magnesium, Phosphorus, Potassium, Sodium, Zinc, Copper,
	Manganese, Selenium, Iodine, Chromium, Molybdenum,
	VitaminA, VitaminC, VitaminD, VitaminE, VitaminK,
	Thiamin, Riboflavin, Niacin, VitaminB6, Folate, VitaminB12, Biotin,
	PantothenicAcid, Choline,
}

// Micronutrients holds the values a food actually reports. A missing key
// means "not reported" and counts as zero when summed.
type Micronutrients map[Micronutrient]float64

// Get returns the value or zero when absent.
func (m Micronutrients) Get(n Micronutrient) float64 {
	return m[n]
}

// Clone copies the map. A nil map stays nil.
func (m Micronutrients) Clone() Micronutrients {
	if m == nil {
		return nil
	}
	out := make(Micronutrients, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ZeroMicronutrients returns a fully populated set with every value at zero.
func ZeroMicronutrients() Micronutrients {
	out := make(Micronutrients, len(AllMicronutrients))
	for _, n := range AllMicronutrients {
		out[n] = 0
	}
	return out
}

// AddInto accumulates o into m for every canonical micronutrient, treating
// absent values in o as zero. m must be non-nil.
func (m Micronutrients) AddInto(o Micronutrients) {
	for _, n := range AllMicronutrients {
		m[n] += o[n]
	}
}
