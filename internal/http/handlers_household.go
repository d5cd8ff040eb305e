package http

import (
	"errors"
	"log/slog"
	"net/http"

	"hogar/internal/core"
)

// --- Meal planner ---

type plannedMealView struct {
	Date     string `json:"date"`
	MealType string `json:"meal_type"`
	RecipeID int64  `json:"recipe_id"`
}

type assignMealRequest struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	MealType string `json:"meal_type" validate:"required,oneof=lunch dinner"`
	RecipeID int64  `json:"recipe_id" validate:"required,min=1"`
}

type removeMealRequest struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	MealType string `json:"meal_type" validate:"required,oneof=lunch dinner"`
}

type weekRangeRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

func (s *Server) handlePlannerList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	from, err := parseDateParam(r, "from")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	meals, err := s.storage.ListPlan(r.Context(), from, to)
	if err != nil {
		slog.ErrorContext(r.Context(), "Planner list failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not list plan")
		return
	}

	views := make([]plannedMealView, len(meals))
	for i, m := range meals {
		views[i] = plannedMealView{Date: m.Date.String(), MealType: string(m.MealType), RecipeID: m.RecipeID}
	}
	respondJSON(w, http.StatusOK, map[string]any{"meals": views})
}

func (s *Server) handlePlannerAssign(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req assignMealRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	date, _ := core.ParseDate(req.Date)

	meal := core.PlannedMeal{
		Date:     date,
		MealType: core.MealType(req.MealType),
		RecipeID: req.RecipeID,
	}
	if err := meal.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if _, err := s.storage.GetRecipe(r.Context(), req.RecipeID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "recipe not found")
			return
		}
		slog.ErrorContext(r.Context(), "Recipe lookup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not assign meal")
		return
	}

	if err := s.storage.AssignMeal(r.Context(), meal); err != nil {
		slog.ErrorContext(r.Context(), "Meal assignment failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not assign meal")
		return
	}
	respondJSON(w, http.StatusOK, plannedMealView{Date: meal.Date.String(), MealType: string(meal.MealType), RecipeID: meal.RecipeID})
}

func (s *Server) handlePlannerRemove(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req removeMealRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	date, _ := core.ParseDate(req.Date)

	if err := s.storage.RemoveMeal(r.Context(), date, core.MealType(req.MealType)); err != nil {
		slog.ErrorContext(r.Context(), "Meal removal failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not remove meal")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handlePlannerClearWeek(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req weekRangeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	from, _ := core.ParseDate(req.From)
	to, _ := core.ParseDate(req.To)

	deleted, err := s.storage.DeletePlanRange(r.Context(), from, to)
	if err != nil {
		slog.ErrorContext(r.Context(), "Plan range delete failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not clear week")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *Server) handlePlannerPurgePast(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	deleted, err := s.storage.PurgePastPlans(r.Context(), core.Today())
	if err != nil {
		slog.ErrorContext(r.Context(), "Past plan purge failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not purge past plans")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// --- Recipes ---

type ingredientPayload struct {
	Name   string `json:"name" validate:"required,min=1,max=100"`
	Amount string `json:"amount" validate:"max=50"`
	Store  string `json:"store" validate:"max=100"`
}

type createRecipeRequest struct {
	Name        string              `json:"name" validate:"required,min=3,max=100"`
	Steps       []string            `json:"steps" validate:"required,min=1,dive,required"`
	Ingredients []ingredientPayload `json:"ingredients" validate:"required,min=1,dive"`
}

type recipeView struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Steps       []string            `json:"steps"`
	Ingredients []ingredientPayload `json:"ingredients"`
}

func toRecipeView(rec core.Recipe) recipeView {
	ings := make([]ingredientPayload, len(rec.Ingredients))
	for i, ing := range rec.Ingredients {
		ings[i] = ingredientPayload{Name: ing.Name, Amount: ing.Amount, Store: ing.Store}
	}
	return recipeView{ID: rec.ID, Name: rec.Name, Steps: rec.Steps, Ingredients: ings}
}

func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleRecipeList(w, r)
	case http.MethodPost:
		s.handleRecipeCreate(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleRecipeList(w http.ResponseWriter, r *http.Request) {
	recipes, err := s.storage.ListRecipes(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Recipe list failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not list recipes")
		return
	}

	views := make([]recipeView, len(recipes))
	for i, rec := range recipes {
		views[i] = toRecipeView(rec)
	}
	respondJSON(w, http.StatusOK, map[string]any{"recipes": views})
}

func (s *Server) handleRecipeCreate(w http.ResponseWriter, r *http.Request) {
	var req createRecipeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	rec := core.Recipe{Name: sanitizeInput(req.Name), Steps: req.Steps}
	for _, ing := range req.Ingredients {
		rec.Ingredients = append(rec.Ingredients, core.RecipeIngredient{
			Name:   sanitizeInput(ing.Name),
			Amount: sanitizeInput(ing.Amount),
			Store:  sanitizeInput(ing.Store),
		})
	}
	if err := rec.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.storage.CreateRecipe(r.Context(), rec)
	if err != nil {
		slog.ErrorContext(r.Context(), "Recipe creation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not create recipe")
		return
	}
	respondJSON(w, http.StatusCreated, toRecipeView(created))
}

type idRequest struct {
	ID int64 `json:"id" validate:"required,min=1"`
}

func (s *Server) handleRecipeDelete(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req idRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := s.storage.DeleteRecipe(r.Context(), req.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "recipe not found")
			return
		}
		slog.ErrorContext(r.Context(), "Recipe deletion failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not delete recipe")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Shopping list ---

type shoppingItemView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsManual bool   `json:"is_manual"`
	Checked  bool   `json:"checked"`
}

type addItemRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type toggleItemRequest struct {
	ID      int64 `json:"id" validate:"required,min=1"`
	Checked bool  `json:"checked"`
}

func (s *Server) handleShoppingList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	items, err := s.storage.ListShoppingItems(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Shopping list failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not list items")
		return
	}

	views := make([]shoppingItemView, len(items))
	for i, it := range items {
		views[i] = shoppingItemView{ID: it.ID, Name: it.Name, IsManual: it.IsManual, Checked: it.Checked}
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": views})
}

func (s *Server) handleShoppingAdd(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req addItemRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	item, err := s.storage.AddShoppingItem(r.Context(), sanitizeInput(req.Name), true)
	if err != nil {
		slog.ErrorContext(r.Context(), "Shopping item add failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not add item")
		return
	}
	respondJSON(w, http.StatusCreated, shoppingItemView{ID: item.ID, Name: item.Name, IsManual: item.IsManual, Checked: item.Checked})
}

func (s *Server) handleShoppingToggle(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req toggleItemRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := s.storage.SetShoppingItemChecked(r.Context(), req.ID, req.Checked); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "item not found")
			return
		}
		slog.ErrorContext(r.Context(), "Shopping toggle failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not update item")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleShoppingDelete(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req idRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if err := s.storage.DeleteShoppingItem(r.Context(), req.ID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "item not found")
			return
		}
		slog.ErrorContext(r.Context(), "Shopping delete failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not delete item")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleShoppingClear(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	deleted, err := s.storage.ClearShoppingList(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Shopping clear failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not clear list")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// handleShoppingImportWeek pulls the distinct ingredient names of every recipe
// planned in the given week onto the shopping list.
func (s *Server) handleShoppingImportWeek(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req weekRangeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	from, _ := core.ParseDate(req.From)
	to, _ := core.ParseDate(req.To)

	names, err := s.storage.PlannedIngredientNames(r.Context(), from, to)
	if err != nil {
		slog.ErrorContext(r.Context(), "Planned ingredient lookup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not import ingredients")
		return
	}
	if len(names) == 0 {
		respondJSON(w, http.StatusOK, map[string]int64{"added": 0})
		return
	}

	added, err := s.storage.AddShoppingItems(r.Context(), names)
	if err != nil {
		slog.ErrorContext(r.Context(), "Ingredient import failed", "error", err)
		respondError(w, http.StatusInternalServerError, "could not import ingredients")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"added": added})
}
