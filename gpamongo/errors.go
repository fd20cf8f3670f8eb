package gpamongo

import (
	"errors"
	"strings"

	"github.com/lemmego/gpameta"
	"go.mongodb.org/mongo-driver/mongo"
)

// =====================================
// Error Conversion
// =====================================

// convertMongoError converts MongoDB errors to gpameta errors
func convertMongoError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeNotFound, "document not found", err)
	case errors.Is(err, mongo.ErrClientDisconnected):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "client is disconnected", err)
	case mongo.IsDuplicateKeyError(err):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeDuplicate, "duplicate key violation", err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "connection error", err)
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 26, 48: // NamespaceNotFound, CollectionNotFound
			return gpameta.NewErrorWithCause(gpameta.ErrorTypeNotFound, "collection not found", err)
		case 13, 18: // Unauthorized, AuthenticationFailed
			return gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "unauthorized access", err)
		case 121: // DocumentValidationFailure
			return gpameta.NewErrorWithCause(gpameta.ErrorTypeValidation, "document validation failed", err)
		}
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "server selection") {
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "connection error", err)
	}
	return gpameta.NewErrorWithCause(gpameta.ErrorTypeInternal, "database operation failed", err)
}
