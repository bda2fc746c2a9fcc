package controllers

import (
	"net/http"

	"github.com/m-barthelemy/placeshare/services"
	"github.com/m-barthelemy/placeshare/utils"
)

type NotificationsController struct {
	notifications *services.NotificationsManager
}

// New creates an instance of the controller
func New(notifications *services.NotificationsManager) *NotificationsController {
	return &NotificationsController{notifications: notifications}
}

func (c *NotificationsController) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, _ := utils.Identity(r)

	notifications, err := c.notifications.List(r.Context(), userID)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	utils.JSONResponse(w, map[string]interface{}{"notifications": notifications}, http.StatusOK)
}
