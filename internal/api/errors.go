package api

import (
	"errors"
	"net/http"
	"strings"

	"barberbook/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errUnauthenticated = errors.New("missing or invalid user header")

type errorMapping struct {
	http int
	grpc codes.Code
}

var errorMappings = map[string]errorMapping{
	"slot_conflict":      {http.StatusConflict, codes.Aborted},
	"invalid_transition": {http.StatusConflict, codes.FailedPrecondition},
	"invalid_state":      {http.StatusConflict, codes.FailedPrecondition},
	"shop_closed":        {http.StatusUnprocessableEntity, codes.FailedPrecondition},
	"invalid_services":   {http.StatusUnprocessableEntity, codes.InvalidArgument},
	"slot_elapsed":       {http.StatusUnprocessableEntity, codes.FailedPrecondition},
	"slot_off_grid":      {http.StatusBadRequest, codes.InvalidArgument},
	"reason_required":    {http.StatusBadRequest, codes.InvalidArgument},
	"invalid_receipt":    {http.StatusBadRequest, codes.InvalidArgument},
	"invalid_input":      {http.StatusBadRequest, codes.InvalidArgument},
	"not_authorized":     {http.StatusForbidden, codes.PermissionDenied},
	"not_found":          {http.StatusNotFound, codes.NotFound},
}

const internalMessage = "internal error"

// classify returns the wire code, HTTP status, gRPC code and client-facing
// message for err. Internal errors never leak their text.
func classify(err error) (code string, httpStatus int, grpcCode codes.Code, message string) {
	if errors.Is(err, errUnauthenticated) {
		return "unauthenticated", http.StatusUnauthorized, codes.Unauthenticated, err.Error()
	}
	code = domain.Code(err)
	m, ok := errorMappings[code]
	if !ok {
		return "internal", http.StatusInternalServerError, codes.Internal, internalMessage
	}
	return code, m.http, m.grpc, err.Error()
}

// grpcError converts a service error to a status error whose message is
// prefixed with the wire code.
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code, _, grpcCode, message := classify(err)
	return status.Error(grpcCode, code+": "+message)
}

// ErrorFromStatus restores the domain sentinel from a gRPC status produced by
// grpcError, so clients can match with errors.Is.
func ErrorFromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return err
	}
	code, _, found := strings.Cut(st.Message(), ":")
	if !found {
		return err
	}
	if sentinel := domain.FromCode(code); sentinel != nil {
		return errors.Join(sentinel, err)
	}
	return err
}
