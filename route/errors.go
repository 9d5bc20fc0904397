package route

import (
	"net/http"
)

type handlerError struct {
	// err is the error that we're throwing
	err error
	// msg is the human-readable context with which we're throwing the error
	msg string
	// status is the HTTP status code we should return
	status int
	// detailed is whether the err itself should be included in the msg response
	detailed bool
	// friendly is whether the msg can be returned as is or if we should use a
	// generic error
	friendly bool
}

var ErrGenericMessage = "unexpected error!"

var (
	ErrJSONFailed      = handlerError{nil, "failed to parse JSON", http.StatusBadRequest, false, true}
	ErrJSONBuildFailed = handlerError{nil, "failed to build JSON response", http.StatusInternalServerError, false, true}
	ErrPostBody        = handlerError{nil, "failed to read request body", http.StatusInternalServerError, false, false}
	ErrInvalidCount    = handlerError{nil, "count must be a positive integer", http.StatusBadRequest, true, true}
	ErrUnknownStream   = handlerError{nil, "no throughput data for stream", http.StatusNotFound, true, true}
	ErrCaughtPanic     = handlerError{nil, "caught panic in handler", http.StatusInternalServerError, false, false}
)

func (r *Router) handlerReturnWithError(w http.ResponseWriter, he handlerError, err error) {
	if err != nil {
		he.err = err
	}
	r.Logger.Error().WithField("error", he.err.Error()).Logf("returning error %s", he.msg)
	w.WriteHeader(he.status)
	errmsg := he.msg
	if he.detailed {
		errmsg = he.msg + ": " + he.err.Error()
	}
	if !he.friendly {
		errmsg = ErrGenericMessage
	}
	jsonErrMsg := []byte(`{"error":"` + errmsg + `"}`)
	w.Write(jsonErrMsg)
}
