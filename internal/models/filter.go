package models

// FilterCriteria holds the structured constraints applied to a query.
// Nil prices and empty strings mean the constraint is not set.
type FilterCriteria struct {
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
	Color    string   `json:"color,omitempty"`
	Brand    string   `json:"brand,omitempty"`
	Category string   `json:"category,omitempty"`
}

// IsEmpty reports whether no constraint is set.
func (f FilterCriteria) IsEmpty() bool {
	return f.MinPrice == nil && f.MaxPrice == nil && f.Color == "" && f.Brand == "" && f.Category == ""
}

// Merge fills the fields of f that are unset with the values from other.
// Fields already set in f are kept.
func (f FilterCriteria) Merge(other *FilterCriteria) FilterCriteria {
	if other == nil {
		return f
	}
	if f.MinPrice == nil && other.MinPrice != nil {
		v := *other.MinPrice
		f.MinPrice = &v
	}
	if f.MaxPrice == nil && other.MaxPrice != nil {
		v := *other.MaxPrice
		f.MaxPrice = &v
	}
	if f.Color == "" {
		f.Color = other.Color
	}
	if f.Brand == "" {
		f.Brand = other.Brand
	}
	if f.Category == "" {
		f.Category = other.Category
	}
	return f
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
