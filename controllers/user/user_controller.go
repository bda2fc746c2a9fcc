package controllers

import (
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/m-barthelemy/placeshare/models"
	"github.com/m-barthelemy/placeshare/services"
	"github.com/m-barthelemy/placeshare/utils"
)

type UserController struct {
	config *models.Config
	users  *services.UserManager
}

type signupForm struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"min=8"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// New creates an instance of the controller
func New(config *models.Config, users *services.UserManager) *UserController {
	return &UserController{config: config, users: users}
}

// GetUsers lists all users. Authenticated callers also get their follow status towards each user.
func (u *UserController) GetUsers(w http.ResponseWriter, r *http.Request) {
	var caller *uuid.UUID
	if userID, ok := utils.Identity(r); ok {
		caller = &userID
	}
	users, err := u.users.ListUsers(r.Context(), caller)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, map[string]interface{}{"users": users}, http.StatusOK)
}

// Signup expects a multipart form with name, email, password and an optional image.
func (u *UserController) Signup(w http.ResponseWriter, r *http.Request) {
	image, file, err := utils.ParseImage(w, r, u.config.MaxUploadSize)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	if file != nil {
		defer file.Close()
	}
	form := signupForm{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Email:    strings.ToLower(strings.TrimSpace(r.FormValue("email"))),
		Password: r.FormValue("password"),
	}
	if err := utils.ValidateStruct(&form); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	result, err := u.users.Signup(r.Context(), services.NewUser{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
		Image:    image,
	})
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, result, http.StatusCreated)
}

func (u *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var request loginRequest
	if err := utils.DecodeJSON(w, r, u.config.MaxBodySize, &request); err != nil {
		utils.ErrorResponse(w, services.Forbidden("Invalid credentials, could not log you in."))
		return
	}
	result, err := u.users.Login(r.Context(), request.Email, request.Password)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, result, http.StatusOK)
}
