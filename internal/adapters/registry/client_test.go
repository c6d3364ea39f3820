package registry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"permit-enrichment-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*fetchClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := newFetchClient(domain.SourcePluto, server.URL, 0, 5*time.Second, "")
	require.NoError(t, err)
	return client, server
}

func TestFetchRows(t *testing.T) {
	t.Run("empty array is a normal empty outcome", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		})

		rows, err := client.fetchRows(url.Values{"bbl": {"3050080064"}})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("stringifies mixed value types", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"owner": "ACME LLC", "assesstot": 1250000, "active": true, "geom": {"type": "Point"}, "missing": null}]`))
		})

		rows, err := client.fetchRows(url.Values{})
		require.NoError(t, err)
		require.Len(t, rows, 1)

		assert.Equal(t, "ACME LLC", rows[0]["owner"])
		assert.Equal(t, "1250000", rows[0]["assesstot"])
		assert.Equal(t, "true", rows[0]["active"])
		assert.Equal(t, "", rows[0]["geom"])
		assert.Equal(t, "", rows[0]["missing"])
	})

	t.Run("passes query parameters through", func(t *testing.T) {
		var gotQuery url.Values
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			w.Write([]byte(`[]`))
		})

		_, err := client.fetchRows(url.Values{"boro": {"3"}, "block": {"5008"}})
		require.NoError(t, err)

		assert.Equal(t, "3", gotQuery.Get("boro"))
		assert.Equal(t, "5008", gotQuery.Get("block"))
	})

	t.Run("server error is transient", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := client.fetchRows(url.Values{})
		var transient *domain.TransientError
		require.ErrorAs(t, err, &transient)
		assert.Equal(t, domain.SourcePluto, transient.Source)
	})

	t.Run("rate limit is transient", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := client.fetchRows(url.Values{})
		var transient *domain.TransientError
		assert.ErrorAs(t, err, &transient)
	})

	t.Run("unreachable registry is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		client, err := newFetchClient(domain.SourcePluto, server.URL, 0, 2*time.Second, "")
		require.NoError(t, err)
		server.Close()

		_, err = client.fetchRows(url.Values{})
		var transient *domain.TransientError
		assert.ErrorAs(t, err, &transient)
	})

	t.Run("client error is terminal", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := client.fetchRows(url.Values{})
		require.Error(t, err)
		var transient *domain.TransientError
		assert.False(t, errors.As(err, &transient))
	})

	t.Run("malformed body is terminal", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not": "an array"}`))
		})

		_, err := client.fetchRows(url.Values{})
		require.Error(t, err)
		var transient *domain.TransientError
		assert.False(t, errors.As(err, &transient))
	})

	t.Run("sends app token header when configured", func(t *testing.T) {
		var gotToken string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotToken = r.Header.Get("X-App-Token")
			w.Write([]byte(`[]`))
		}))
		t.Cleanup(server.Close)

		client, err := newFetchClient(domain.SourcePluto, server.URL, 0, 5*time.Second, "secret-token")
		require.NoError(t, err)

		_, err = client.fetchRows(url.Values{})
		require.NoError(t, err)
		assert.Equal(t, "secret-token", gotToken)
	})

	t.Run("paces consecutive requests", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))
		t.Cleanup(server.Close)

		delay := 50 * time.Millisecond
		client, err := newFetchClient(domain.SourcePluto, server.URL, delay, 5*time.Second, "")
		require.NoError(t, err)

		start := time.Now()
		_, err = client.fetchRows(url.Values{})
		require.NoError(t, err)
		_, err = client.fetchRows(url.Values{})
		require.NoError(t, err)

		assert.GreaterOrEqual(t, time.Since(start), delay)
	})

	t.Run("rejects unparsable base URL", func(t *testing.T) {
		_, err := newFetchClient(domain.SourcePluto, "http://exa mple.com", 0, time.Second, "")
		assert.Error(t, err)
	})
}

func TestSingleRowResult(t *testing.T) {
	t.Run("no rows", func(t *testing.T) {
		result := singleRowResult(nil)
		assert.True(t, result.Empty())
		assert.False(t, result.Ambiguous)
	})

	t.Run("one row", func(t *testing.T) {
		result := singleRowResult([]domain.FieldSet{{"owner": "ACME"}})
		assert.False(t, result.Empty())
		assert.False(t, result.Ambiguous)
	})

	t.Run("multiple rows are flagged, not discarded", func(t *testing.T) {
		result := singleRowResult([]domain.FieldSet{{"owner": "A"}, {"owner": "B"}})
		assert.True(t, result.Ambiguous)
		assert.Len(t, result.Rows, 2)
	})
}
