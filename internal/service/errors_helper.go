package service

import (
	"database/sql"
	"errors"

	appErrors "github.com/noah-isme/steam-center-api/pkg/errors"
)

// mapNotFound converts sql.ErrNoRows into a NOT_FOUND error and anything else into an internal error.
func mapNotFound(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

// wrapInternal keeps typed errors and wraps untyped ones as internal failures.
func wrapInternal(err error, message string) error {
	if err == nil {
		return nil
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func actorRef(actorID string) *string {
	if actorID == "" {
		return nil
	}
	return &actorID
}
