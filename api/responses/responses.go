package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/logger"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Success{Data: data})
}

// WriteHTML writes a rendered document.
func WriteHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteError logs err and writes its public form. Untyped errors are
// reported as internal without their text.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	pub := pkgerrors.Present(err)
	if logg != nil {
		logg.Error(logg.WithFields(ctx, errorFields(err, pub)), "request.error", err)
	}
	writeJSON(w, pub.Status, Failure{Error: ErrorBody{
		Code:      string(pub.Code),
		Message:   pub.Message,
		Details:   pub.Details,
		RequestID: RequestIDFrom(ctx),
	}})
}

func errorFields(err error, pub pkgerrors.Public) map[string]any {
	fields := pkgerrors.Diagnose(err).Fields()
	fields["status"] = pub.Status
	if typed := pkgerrors.As(err); typed != nil {
		if d, ok := typed.Details().(map[string]any); ok && d["step"] != nil {
			fields["step"] = d["step"]
		}
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
