// Package exporters exposes collected metrics over HTTP and the event bus.
package exporters

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/uvcctl/internal/logging"
)

// Handler serves every metric registered with the default registry, in
// OpenMetrics format when the scraper asks for it. A collector that fails
// is logged and skipped instead of failing the scrape.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:          scrapeLog{},
			ErrorHandling:     promhttp.ContinueOnError,
			EnableOpenMetrics: true,
		}))
}

type scrapeLog struct{}

func (scrapeLog) Println(v ...any) {
	logging.GetLogger("metrics").Warn("Metrics scrape error", "error", fmt.Sprint(v...))
}
