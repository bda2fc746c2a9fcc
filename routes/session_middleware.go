package routes

import (
	"net/http"
	"strings"

	"github.com/m-barthelemy/placeshare/models"
	"github.com/m-barthelemy/placeshare/services"
	"github.com/m-barthelemy/placeshare/utils"
	log "github.com/sirupsen/logrus"
)

const authFailedMessage = "Authentication failed!"

type SessionHandler struct {
	config *models.Config
}

func NewSessionHandler(config *models.Config) *SessionHandler {
	return &SessionHandler{config: config}
}

// SessionMiddleware resolves the caller from the `Authorization: Bearer` header.
// When allowNoSession is true, a missing or invalid token lets the request through anonymously.
func (s *SessionHandler) SessionMiddleware(h http.HandlerFunc, allowNoSession bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// CORS preflight requests never carry credentials
		if r.Method == http.MethodOptions {
			h(w, r)
			return
		}

		tokenString := bearerToken(r)
		if tokenString == "" {
			if !allowNoSession {
				utils.MessageResponse(w, authFailedMessage, http.StatusUnauthorized)
				return
			}
			h(w, r)
			return
		}

		userID, err := services.ParseToken([]byte(s.config.SigningKey), tokenString)
		if err != nil {
			if !allowNoSession {
				log.Debugf("SessionMiddleware: rejected token: %s", err.Error())
				utils.MessageResponse(w, authFailedMessage, http.StatusUnauthorized)
				return
			}
			h(w, r)
			return
		}

		h(w, r.WithContext(utils.WithIdentity(r.Context(), userID)))
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
