package utils

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
	"github.com/m-barthelemy/placeshare/models"
	"github.com/m-barthelemy/placeshare/services"
	log "github.com/sirupsen/logrus"
)

// InvalidInputsMessage is returned when a request body fails validation.
const InvalidInputsMessage = "Invalid inputs passed, please check your data"

var validate = validator.New()

type Utils struct {
	config *models.Config
}

func New(config *models.Config) *Utils {
	return &Utils{config: config}
}

// GetClientIP returns the client address from the configured proxy header, or from the connection when the header is missing.
func (u *Utils) GetClientIP(r *http.Request) string {
	if u.config.OriginalIPHeader != "" {
		if proxyHeader := r.Header.Get(u.config.OriginalIPHeader); len(proxyHeader) > 0 {
			forwardedIps := strings.Split(proxyHeader, ",")
			// Last value, if multiple found, is supposed to be the "trusted" one because added by a reverse proxy we control.
			return strings.TrimSpace(forwardedIps[len(forwardedIps)-1])
		}
		log.Warnf("Utils: Configured to get client IP from `%s` but header is absent or empty, using connection address", u.config.OriginalIPHeader)
	}
	sourceIP, _, _ := net.SplitHostPort(r.RemoteAddr)
	return sourceIP
}

// JSONResponse outputs d as a JSON encoded response with status c
func JSONResponse(w http.ResponseWriter, d interface{}, c int) {
	dj, err := json.Marshal(d)
	if err != nil {
		log.Errorf("Utils: Error serializing response to JSON: %s", err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c)
	fmt.Fprintf(w, "%s", dj)
}

// MessageResponse outputs {"message": message} with status c
func MessageResponse(w http.ResponseWriter, message string, c int) {
	JSONResponse(w, map[string]string{"message": message}, c)
}

// ErrorResponse maps err to its HTTP status and caller-facing message.
// Errors that were never mapped are logged and reported as a generic 500.
func ErrorResponse(w http.ResponseWriter, err error) {
	var mapped *services.Error
	if errors.As(err, &mapped) {
		if mapped.Status >= http.StatusInternalServerError {
			log.Errorf("Utils: %s", mapped.Error())
		}
		MessageResponse(w, mapped.Message, mapped.Status)
		return
	}
	log.Errorf("Utils: unexpected error: %s", err.Error())
	MessageResponse(w, "An unknown error occurred!", http.StatusInternalServerError)
}

// DecodeJSON reads a JSON request body of at most maxSize bytes into v and validates it.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxSize int64, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize) // Refuse request with big body
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return services.Unprocessable(InvalidInputsMessage, err)
	}
	return ValidateStruct(v)
}

// ValidateStruct checks the `validate` tags of v.
func ValidateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return services.Unprocessable(InvalidInputsMessage, err)
	}
	return nil
}

// ParseImage parses a multipart form of at most maxSize bytes and returns its `image` file, or nil if absent.
// The returned file must be closed by the caller.
func ParseImage(w http.ResponseWriter, r *http.Request, maxSize int64) (*services.Upload, multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, nil, services.Unprocessable(InvalidInputsMessage, err)
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, services.Unprocessable("Image upload failed", err)
	}
	upload := &services.Upload{
		Reader:      file,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}
	return upload, file, nil
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying the authenticated user id.
func WithIdentity(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, identityKey, userID)
}

// Identity returns the authenticated user id of the request, if any.
func Identity(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(identityKey).(uuid.UUID)
	return userID, ok
}
