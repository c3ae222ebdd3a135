package domain

// FallbackCategory is used when free text cannot be mapped to a known
// category with confidence.
const FallbackCategory = "Lainnya"

// Category is a (name, type) pair; the pair is unique in the registry.
type Category struct {
	Name string          `json:"name"`
	Type TransactionType `json:"type"`
}

// CategorySet lists category names per partition.
type CategorySet struct {
	Income  []string `json:"INCOME"`
	Expense []string `json:"EXPENSE"`
}

// For returns the partition for typ.
func (c CategorySet) For(typ TransactionType) []string {
	if typ == Income {
		return c.Income
	}
	return c.Expense
}

// DefaultCategories returns a fresh copy of the built-in category set.
func DefaultCategories() CategorySet {
	return CategorySet{
		Income: []string{"Uang Saku", "Hadiah", "Kerja Part-time", FallbackCategory},
		Expense: []string{
			"Makanan",
			"Transportasi",
			"Buku/Alat Tulis",
			"Pulsa/Data",
			"Hiburan",
			"Tabungan",
			"Investasi",
			"Zakat/Infaq/Sedekah",
			FallbackCategory,
		},
	}
}
