package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var testCounter = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
	Name: "zoho_metrics_test_total",
	Help: "Counter used by the metrics package tests",
})

func TestRegistry(t *testing.T) {
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
	if Gatherer != prometheus.DefaultGatherer {
		t.Error("Gatherer should be the default Prometheus gatherer")
	}
}

func TestHandler(t *testing.T) {
	testCounter.Add(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "zoho_metrics_test_total ") {
		t.Errorf("metrics output missing test counter:\n%s", body)
	}
}

func TestRegistered(t *testing.T) {
	testCounter.Inc()

	ok, err := Registered("zoho_metrics_test_total")
	if err != nil || !ok {
		t.Errorf("Registered(zoho_metrics_test_total) = %v, %v", ok, err)
	}

	ok, err = Registered("zoho_does_not_exist")
	if err != nil || ok {
		t.Errorf("Registered(zoho_does_not_exist) = %v, %v", ok, err)
	}
}
