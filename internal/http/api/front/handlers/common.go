package handlers

import (
	"errors"

	"github.com/owaiken/gateway/internal/apperr"
	"github.com/owaiken/gateway/internal/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// AccountContextKey is the gin context key holding the caller's *models.Account.
const AccountContextKey = "account"

// getAccount returns the account loaded by the account middleware.
func getAccount(c *gin.Context) *models.Account {
	v, exists := c.Get(AccountContextKey)
	if !exists {
		return nil
	}
	account, _ := v.(*models.Account)
	return account
}

// respondError writes the JSON error envelope for err.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= 500 {
		var appErr *apperr.Error
		if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
			log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		}
	}
	c.JSON(status, apperr.Envelope(err))
}

// requireAccount aborts with 404 when no account is attached to the request.
func requireAccount(c *gin.Context) (*models.Account, bool) {
	account := getAccount(c)
	if account == nil {
		respondError(c, apperr.New(apperr.KindAccountNotFound, "User not found"))
		return nil, false
	}
	return account, true
}

// validationError wraps a binding failure as a 400.
func validationError(message string, errBind error) error {
	err := apperr.New(apperr.KindValidation, message)
	if errBind != nil {
		err.Err = errBind
		err.Details = errBind.Error()
	}
	return err
}
