package models

type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryStudy    Category = "study"
	CategoryHome     Category = "home"
	CategoryOther    Category = "other"

	DefaultCategory = CategoryWork
)

var categoryLabels = map[Category]string{
	CategoryWork:     "Work",
	CategoryPersonal: "Personal",
	CategoryStudy:    "Study",
	CategoryHome:     "Home",
	CategoryOther:    "Other",
}

// Categories lists every category in display order.
var Categories = []Category{
	CategoryWork,
	CategoryPersonal,
	CategoryStudy,
	CategoryHome,
	CategoryOther,
}

// Label falls back to the raw value for rows written before the closed set
// existed.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory maps an empty value to the default category.
func ParseCategory(value string) (Category, bool) {
	if value == "" {
		return DefaultCategory, true
	}
	c := Category(value)
	return c, c.Valid()
}
