package handlers

import (
	"fmt"
	"net/http"

	"escrow-marketplace/internal/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func FormatValidationErrors(err error) map[string]string {
	errorsMap := make(map[string]string)
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		errorsMap["error"] = "Invalid validation error type"
		return errorsMap
	}
	for _, fieldError := range validationErrors {
		fieldName := fieldError.Field()
		errorsMap[fieldName] = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", fieldName, fieldError.Tag())
		switch fieldError.Tag() {
		case "required", "required_without":
			errorsMap[fieldName] = fmt.Sprintf("Field '%s' is required", fieldName)
		case "url":
			errorsMap[fieldName] = fmt.Sprintf("Field '%s' must be a valid URL", fieldName)
		case "min":
			errorsMap[fieldName] = fmt.Sprintf("Field '%s' must be at least %s characters long", fieldName, fieldError.Param())
		case "max":
			errorsMap[fieldName] = fmt.Sprintf("Field '%s' must be at most %s characters long", fieldName, fieldError.Param())
		case "oneof":
			errorsMap[fieldName] = fmt.Sprintf("Field '%s' must be one of: %s", fieldName, fieldError.Param())
		}
	}
	return errorsMap
}

// bindJSON decodes and validates the body, writing the 400 response on failure.
func bindJSON(c *gin.Context, v *validator.Validate, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body: " + err.Error()})
		return false
	}
	return validate(c, v, req)
}

// bindQuery decodes and validates query parameters.
func bindQuery(c *gin.Context, v *validator.Validate, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid query parameters: " + err.Error()})
		return false
	}
	return validate(c, v, req)
}

func validate(c *gin.Context, v *validator.Validate, req any) bool {
	if err := v.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Validation failed", "details": FormatValidationErrors(err)})
		return false
	}
	return true
}

// parseID reads a UUID path parameter.
func parseID(c *gin.Context, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("Invalid %s ID format", label)})
		return uuid.Nil, false
	}
	return id, true
}

// authorizeWallet rejects the request when an authenticated wallet acts for another address.
// Without wallet auth configured every address is accepted.
func authorizeWallet(c *gin.Context, address string) bool {
	wallet, ok := middleware.GetWalletFromContext(c)
	if !ok || address == "" || wallet == address {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Authenticated wallet does not match the acting address"})
	return false
}
