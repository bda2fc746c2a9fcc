package controllers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/m-barthelemy/placeshare/models"
	"github.com/m-barthelemy/placeshare/services"
	"github.com/m-barthelemy/placeshare/utils"
)

type PlacesController struct {
	config *models.Config
	places *services.PlaceManager
}

type placeForm struct {
	Title       string `validate:"required"`
	Description string `validate:"min=5"`
}

type updatePlaceRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"min=5"`
}

// New creates an instance of the controller
func New(config *models.Config, places *services.PlaceManager) *PlacesController {
	return &PlacesController{config: config, places: places}
}

func (c *PlacesController) GetPlace(w http.ResponseWriter, r *http.Request) {
	place, err := c.places.GetPlace(r.Context(), mux.Vars(r)["pid"])
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, map[string]interface{}{"place": place}, http.StatusOK)
}

func (c *PlacesController) GetPlacesByUser(w http.ResponseWriter, r *http.Request) {
	places, err := c.places.GetPlacesByUser(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, map[string]interface{}{"places": places}, http.StatusOK)
}

// CreatePlace expects a multipart form with title, description, address and image fields.
func (c *PlacesController) CreatePlace(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.Identity(r)

	image, file, err := utils.ParseImage(w, r, c.config.MaxUploadSize)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	if file != nil {
		defer file.Close()
	}
	form := placeForm{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	if err := utils.ValidateStruct(&form); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	place, err := c.places.CreatePlace(r.Context(), userID, services.NewPlace{
		Title:       form.Title,
		Description: form.Description,
		Address:     r.FormValue("address"),
		Image:       image,
	})
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, map[string]interface{}{"place": place}, http.StatusCreated)
}

func (c *PlacesController) UpdatePlace(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.Identity(r)

	var request updatePlaceRequest
	if err := utils.DecodeJSON(w, r, c.config.MaxBodySize, &request); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	place, err := c.places.UpdatePlace(r.Context(), mux.Vars(r)["pid"], userID, request.Title, request.Description)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, map[string]interface{}{"place": place}, http.StatusOK)
}

func (c *PlacesController) DeletePlace(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.Identity(r)

	if err := c.places.DeletePlace(r.Context(), mux.Vars(r)["pid"], userID); err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.MessageResponse(w, "Deleted place.", http.StatusOK)
}
