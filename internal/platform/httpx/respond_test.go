package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("page: %w", ErrValidation): http.StatusBadRequest,
		ErrForbidden:                          http.StatusForbidden,
		ErrUnauthorized:                       http.StatusUnauthorized,
		ErrNotFound:                           http.StatusNotFound,
		fmt.Errorf("db down"):                 http.StatusInternalServerError,
	}
	for err, status := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, err)
		require.Equal(t, status, rr.Code, err.Error())
		require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	}
}

func TestWriteProblemDefaultsTitle(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteProblem(rr, ProblemDetail{Status: http.StatusConflict, Code: "already_exists"})

	var body ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, "Conflict", body.Title)
	require.Equal(t, "already_exists", body.Code)
}
