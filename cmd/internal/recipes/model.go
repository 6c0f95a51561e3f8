// Package recipes holds the two domain collections: recipes and the shopping list.
package recipes

// Ingredient is one line of a recipe or of the shopping list.
type Ingredient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Recipe mirrors the remote store's recipe document.
type Recipe struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	ImagePath   string       `json:"imagePath"`
	Ingredients []Ingredient `json:"ingredients"`
}

// CloneRecipe returns a deep copy of r. A nil ingredient list stays nil.
func CloneRecipe(r Recipe) Recipe {
	if r.Ingredients != nil {
		r.Ingredients = append(make([]Ingredient, 0, len(r.Ingredients)), r.Ingredients...)
	}
	return r
}

// CloneIngredient is the identity copy; Ingredient has no reference fields.
func CloneIngredient(i Ingredient) Ingredient { return i }

// Normalize replaces missing ingredient lists with empty ones.
// The remote store drops empty arrays, so a recipe without ingredients comes back as null.
func Normalize(in []Recipe) []Recipe {
	out := make([]Recipe, len(in))
	for i, r := range in {
		r = CloneRecipe(r)
		if r.Ingredients == nil {
			r.Ingredients = []Ingredient{}
		}
		out[i] = r
	}
	return out
}

// NormalizeIngredients returns a non-nil copy of in.
func NormalizeIngredients(in []Ingredient) []Ingredient {
	return append(make([]Ingredient, 0, len(in)), in...)
}
