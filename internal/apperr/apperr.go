// Package apperr holds the closed set of user-facing error categories and the
// translation table from store errors into them. Raw store detail stays inside
// Err and is only ever logged.
package apperr

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite3 "modernc.org/sqlite/lib"
)

type Kind string

const (
	Validation        Kind = "VALIDATION"
	PermissionDenied  Kind = "PERMISSION_DENIED"
	DeviceUnavailable Kind = "DEVICE_UNAVAILABLE"
	NotFound          Kind = "NOT_FOUND"
	Conflict          Kind = "CONFLICT"
	TransientStore    Kind = "TRANSIENT_STORE"
)

const (
	MsgGeneric    = "Ocorreu um erro. Tente novamente."
	MsgConflict   = "Este registro já existe."
	MsgReference  = "Erro de referência: registro relacionado não encontrado."
	MsgInvalid    = "Dados inválidos. Verifique os valores informados."
	MsgNotFound   = "Registro não encontrado."
	MsgDenied     = "Acesso à câmera negado. Permita o uso da câmera e tente novamente."
	MsgNoDevice   = "Câmera indisponível."
	MsgBadQty     = "Insira uma quantidade válida (número inteiro positivo)"
	MsgNoDesc     = "Insira a descrição do produto"
	MsgNoProduct  = "Produto não encontrado"
	MsgShortQuery = "Digite ao menos 2 caracteres"
)

// Error is what crosses the service boundary. Message is safe to render.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the category of err, or "" when err is nil.
// Errors that were never translated count as TransientStore.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return TransientStore
}

// Is reports whether err belongs to kind.
func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// SafeMessage is the only text that may reach a user for err.
func SafeMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return MsgGeneric
}

// FromStore maps any error coming out of the SQL layer through the fixed
// translation table. Already-translated errors pass through unchanged.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(NotFound, MsgNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fromPostgres(pgErr.Code, err)
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return fromSQLite(coder.Code(), err)
	}
	return Wrap(TransientStore, MsgGeneric, err)
}

func fromPostgres(code string, err error) error {
	switch code {
	case "23505":
		return Wrap(Conflict, MsgConflict, err)
	case "23503":
		return Wrap(NotFound, MsgReference, err)
	case "23514", "23502":
		return Wrap(Validation, MsgInvalid, err)
	default:
		return Wrap(TransientStore, MsgGeneric, err)
	}
}

func fromSQLite(code int, err error) error {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return Wrap(Conflict, MsgConflict, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return Wrap(NotFound, MsgReference, err)
	case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return Wrap(Validation, MsgInvalid, err)
	case sqlite3.SQLITE_CONSTRAINT:
		// primary code only; the message names the constraint
		msg := err.Error()
		switch {
		case strings.Contains(msg, "UNIQUE"), strings.Contains(msg, "PRIMARY KEY"):
			return Wrap(Conflict, MsgConflict, err)
		case strings.Contains(msg, "FOREIGN KEY"):
			return Wrap(NotFound, MsgReference, err)
		default:
			return Wrap(Validation, MsgInvalid, err)
		}
	default:
		return Wrap(TransientStore, MsgGeneric, err)
	}
}
