package errutil_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/msghub/pkg/utils/errutil"
)

func TestHandleHTTP(t *testing.T) {
	t.Run("client error keeps message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), rec, goerr.New("bad input"), http.StatusBadRequest)

		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
		gt.Value(t, rec.Header().Get("Content-Type")).Equal("application/json")

		var body map[string]string
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body)).Required()
		gt.Value(t, body["error"]).Equal("bad input")
	})

	t.Run("server error hides details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := goerr.New("db exploded", goerr.V("table", "messages"))
		errutil.HandleHTTP(context.Background(), rec, err, http.StatusInternalServerError)

		gt.Value(t, rec.Code).Equal(http.StatusInternalServerError)

		var body map[string]string
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body)).Required()
		gt.Value(t, body["error"]).Equal(errutil.InternalErrorMessage)
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		errutil.HandleHTTP(context.Background(), rec, nil, http.StatusInternalServerError)
		gt.Value(t, rec.Body.Len()).Equal(0)
	})
}
