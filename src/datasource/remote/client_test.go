package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/titanic.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("Survived,Pclass\n1,1\n"))
	}))
	defer srv.Close()

	c := NewClient(time.Second)

	body, err := c.Fetch(context.Background(), srv.URL+"/titanic.csv")
	require.NoError(t, err)
	assert.Equal(t, "Survived,Pclass\n1,1\n", string(body))

	_, err = c.Fetch(context.Background(), srv.URL+"/missing.csv")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(50*time.Millisecond).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
