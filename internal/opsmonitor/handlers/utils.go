package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"ops-monitor/pkg/logging"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"go.uber.org/zap"
)

const (
	orderIDParam = "orderID"

	failedToWriteResponseErrorMessage = "Error writing response"
)

var errInvalidOrderID = errors.New("invalid order id")

func closeBody(ctx context.Context, body io.ReadCloser, logger *logging.ZapLogger) {
	err := body.Close()
	if err != nil {
		logger.ErrorCtx(ctx, "failed to close body", zap.Error(err))
	}
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(&out)
	return out, err
}

func orderIDFromURL(r *http.Request) (int64, error) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, orderIDParam), 10, 64)
	if err != nil || orderID <= 0 {
		return 0, errInvalidOrderID
	}
	return orderID, nil
}

// subjectFromCtx returns the sub claim of the verified token, or "" when absent.
func subjectFromCtx(ctx context.Context) string {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return ""
	}
	subject, _ := claims["sub"].(string)
	return subject
}

func tryWriteResponseJSON(w http.ResponseWriter, statusCode int, responseItem any) error {
	res, err := json.Marshal(responseItem)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err = w.Write(res)
	return err
}
