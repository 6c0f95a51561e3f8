package recipes

import (
	"recipebook/cmd/internal/broadcast"
)

// Store names, used as metric labels and realtime topics.
const (
	RecipesName      = "recipes"
	ShoppingListName = "shopping-list"
)

// RecipeStore is the authoritative recipe collection.
type RecipeStore = broadcast.Store[Recipe]

// ShoppingList is the authoritative shopping-list collection.
type ShoppingList = broadcast.Store[Ingredient]

// NewRecipeStore constructs the recipe collection, seeded with initial.
func NewRecipeStore(initial []Recipe, opts ...broadcast.Option) *RecipeStore {
	opts = append([]broadcast.Option{broadcast.WithName(RecipesName)}, opts...)
	return broadcast.New(CloneRecipe, initial, opts...)
}

// NewShoppingList constructs the shopping-list collection, seeded with initial.
func NewShoppingList(initial []Ingredient, opts ...broadcast.Option) *ShoppingList {
	opts = append([]broadcast.Option{broadcast.WithName(ShoppingListName)}, opts...)
	return broadcast.New(CloneIngredient, initial, opts...)
}

// AddToShoppingList appends all of r's ingredients to list in one publication.
func AddToShoppingList(list *ShoppingList, r Recipe) {
	if list == nil || len(r.Ingredients) == 0 {
		return
	}
	list.AddMany(r.Ingredients...)
}
