// Package service contains the application's orchestration layer. Services
// validate requests, enforce the circulation rules, and coordinate the store,
// search index, and notification delivery.
package service

import (
	"github.com/openshelf/openshelf-server/internal/validation"
)

// validate is the shared request validator for all services.
var validate = validation.New()
