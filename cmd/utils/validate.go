package utils

import "github.com/go-playground/validator/v10"

// Validate is the shared request-DTO validator. validator.Validate is
// safe for concurrent use, so one instance serves every handler.
var Validate = validator.New()
