package errors

import (
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Postgres SQLSTATE codes mapped at the boundary.
const (
	pgUniqueViolation     = "23505"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidTextRepr     = "22P02"
	pgForeignKeyViolation = "23503"
)

// FieldError describes a single invalid request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Normalize maps driver, cache, token and validation failures into the domain taxonomy.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]FieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
		wrapped := Wrap(err, ErrValidation.Code, ErrValidation.Status, ErrValidation.Message)
		wrapped.Details = fields
		return wrapped
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return Wrap(err, ErrConflict.Code, ErrConflict.Status, "resource already exists")
		case pgNotNullViolation, pgCheckViolation, pgInvalidTextRepr, pgForeignKeyViolation:
			return Wrap(err, ErrValidation.Code, ErrValidation.Status, "invalid data")
		}
		return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
	}

	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, redis.Nil) {
		return Wrap(err, ErrNotFound.Code, ErrNotFound.Status, ErrNotFound.Message)
	}

	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return Wrap(err, ErrInternal.Code, ErrInternal.Status, "cache unavailable")
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return Wrap(err, ErrExpiredToken.Code, ErrExpiredToken.Status, ErrExpiredToken.Message)
	}
	if isTokenError(err) {
		return Wrap(err, ErrInvalidToken.Code, ErrInvalidToken.Status, ErrInvalidToken.Message)
	}

	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}

func isTokenError(err error) bool {
	for _, target := range []error{
		jwt.ErrTokenMalformed,
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenInvalidClaims,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
