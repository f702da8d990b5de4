package prices

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fastClient shortens retry delays so failure paths run in milliseconds.
func fastClient(baseURL string) *CoinGeckoClient {
	c := NewCoinGeckoClient(baseURL, zap.NewNop())
	c.retry = RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return c
}

func geckoStub(t *testing.T, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/simple/price") {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func TestGetPrice(t *testing.T) {
	srv := geckoStub(t, `{"bitcoin":{"usd":65000.5}}`)
	defer srv.Close()

	price, err := fastClient(srv.URL).GetPrice(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if price != 65000.5 {
		t.Errorf("Expected price 65000.5, got %v", price)
	}
}

func TestGetPriceZeroIsFailure(t *testing.T) {
	srv := geckoStub(t, `{"bitcoin":{"usd":0}}`)
	defer srv.Close()

	_, err := fastClient(srv.URL).GetPrice(context.Background(), "bitcoin")
	if err == nil {
		t.Fatal("A zero price must be an error, not a valid quote")
	}
	if !strings.Contains(err.Error(), "failed to fetch price for bitcoin") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestGetPriceUnknownToken(t *testing.T) {
	// CoinGecko omits unknown ids from the response object
	srv := geckoStub(t, `{}`)
	defer srv.Close()

	_, err := fastClient(srv.URL).GetPrice(context.Background(), "nonexistent-token")
	if err == nil {
		t.Fatal("Expected an error for a token missing from the response")
	}
}

func TestGetPriceRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"bitcoin":{"usd":65000}}`)
	}))
	defer srv.Close()

	price, err := fastClient(srv.URL).GetPrice(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("Expected retries to recover, got %v", err)
	}
	if price != 65000 {
		t.Errorf("Expected price 65000, got %v", price)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestGetPriceExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).GetPrice(context.Background(), "bitcoin")
	if err == nil {
		t.Fatal("Expected an error after exhausting retries")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestGetPriceClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).GetPrice(context.Background(), "bitcoin")
	if err == nil {
		t.Fatal("Expected an error for a 429 response")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("4xx responses must not be retried, got %d attempts", calls)
	}
}

func TestGetPriceChange(t *testing.T) {
	srv := geckoStub(t, `{"ethereum":{"usd":3500,"usd_24h_change":-2.75}}`)
	defer srv.Close()

	price, change, err := fastClient(srv.URL).GetPriceChange(context.Background(), "ethereum")
	if err != nil {
		t.Fatalf("GetPriceChange failed: %v", err)
	}
	if price != 3500 {
		t.Errorf("Expected price 3500, got %v", price)
	}
	if change != -2.75 {
		t.Errorf("Expected change -2.75, got %v", change)
	}
}

func TestGetVolume(t *testing.T) {
	srv := geckoStub(t, `{"bitcoin":{"usd":65000,"usd_24h_vol":12345678.9}}`)
	defer srv.Close()

	volume, err := fastClient(srv.URL).GetVolume(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("GetVolume failed: %v", err)
	}
	if volume != 12345678.9 {
		t.Errorf("Expected volume 12345678.9, got %v", volume)
	}
}

func TestGetVolumeZeroIsFailure(t *testing.T) {
	srv := geckoStub(t, `{"bitcoin":{"usd":65000}}`)
	defer srv.Close()

	_, err := fastClient(srv.URL).GetVolume(context.Background(), "bitcoin")
	if err == nil {
		t.Fatal("A missing volume must be an error")
	}
}
