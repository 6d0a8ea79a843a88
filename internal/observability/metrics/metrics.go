package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type requestKey struct {
	handler string
	method  string
	code    string
}

type runKey struct {
	status string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			break
		}
	}
}

type collector struct {
	mu          sync.Mutex
	requests    map[requestKey]uint64
	httpLatency map[string]*histogram
	runs        map[runKey]uint64
	runLatency  *histogram
	tokensUsed  uint64
	documents   uint64
}

var defaultCollector = &collector{
	requests:    make(map[requestKey]uint64),
	httpLatency: make(map[string]*histogram),
	runs:        make(map[runKey]uint64),
	runLatency:  newHistogram([]float64{1, 5, 15, 30, 60, 120, 300, 600}),
}

// ObserveHTTPRequest 记录一次 HTTP 请求的状态码与耗时。
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	c := defaultCollector
	c.mu.Lock()
	defer c.mu.Unlock()

	key := requestKey{handler: handler, method: method, code: strconv.Itoa(status)}
	c.requests[key]++

	latKey := handler + "|" + method
	hist := c.httpLatency[latKey]
	if hist == nil {
		hist = newHistogram([]float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
		c.httpLatency[latKey] = hist
	}
	hist.observe(duration.Seconds())
}

// ObserveRunCompletion 记录一次运行的最终状态、token 消耗与耗时。
func ObserveRunCompletion(status string, tokensUsed int, duration time.Duration) {
	c := defaultCollector
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runs[runKey{status: status}]++
	if tokensUsed > 0 {
		c.tokensUsed += uint64(tokensUsed)
	}
	c.runLatency.observe(duration.Seconds())
	if status == "succeeded" {
		c.documents++
	}
}

// Handler 以 Prometheus 文本格式暴露指标。
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, defaultCollector.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var builder strings.Builder
	builder.Grow(1024)

	type requestMetric struct {
		requestKey
		value uint64
	}
	reqs := make([]requestMetric, 0, len(c.requests))
	for key, value := range c.requests {
		reqs = append(reqs, requestMetric{requestKey: key, value: value})
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].handler == reqs[j].handler {
			if reqs[i].method == reqs[j].method {
				return reqs[i].code < reqs[j].code
			}
			return reqs[i].method < reqs[j].method
		}
		return reqs[i].handler < reqs[j].handler
	})

	builder.WriteString("# HELP doccrew_http_requests_total Total number of HTTP requests processed.\n")
	builder.WriteString("# TYPE doccrew_http_requests_total counter\n")
	for _, metric := range reqs {
		builder.WriteString(fmt.Sprintf("doccrew_http_requests_total{handler=%q,method=%q,code=%q} %d\n",
			metric.handler, metric.method, metric.code, metric.value))
	}

	latKeys := make([]string, 0, len(c.httpLatency))
	for key := range c.httpLatency {
		latKeys = append(latKeys, key)
	}
	sort.Strings(latKeys)

	builder.WriteString("# HELP doccrew_http_request_duration_seconds HTTP request duration in seconds.\n")
	builder.WriteString("# TYPE doccrew_http_request_duration_seconds histogram\n")
	for _, key := range latKeys {
		hist := c.httpLatency[key]
		parts := strings.SplitN(key, "|", 2)
		handler, method := parts[0], parts[1]
		writeHistogram(&builder, "doccrew_http_request_duration_seconds",
			fmt.Sprintf("handler=%q,method=%q", handler, method), hist)
	}

	statuses := make([]string, 0, len(c.runs))
	for key := range c.runs {
		statuses = append(statuses, key.status)
	}
	sort.Strings(statuses)

	builder.WriteString("# HELP doccrew_runs_total Total number of documentation runs by final status.\n")
	builder.WriteString("# TYPE doccrew_runs_total counter\n")
	for _, status := range statuses {
		builder.WriteString(fmt.Sprintf("doccrew_runs_total{status=%q} %d\n", status, c.runs[runKey{status: status}]))
	}

	builder.WriteString("# HELP doccrew_run_duration_seconds Documentation run duration in seconds.\n")
	builder.WriteString("# TYPE doccrew_run_duration_seconds histogram\n")
	writeHistogram(&builder, "doccrew_run_duration_seconds", "", c.runLatency)

	builder.WriteString("# HELP doccrew_llm_tokens_total Total number of LLM tokens consumed by runs.\n")
	builder.WriteString("# TYPE doccrew_llm_tokens_total counter\n")
	builder.WriteString(fmt.Sprintf("doccrew_llm_tokens_total %d\n", c.tokensUsed))

	builder.WriteString("# HELP doccrew_documents_written_total Total number of documentation files written.\n")
	builder.WriteString("# TYPE doccrew_documents_written_total counter\n")
	builder.WriteString(fmt.Sprintf("doccrew_documents_written_total %d\n", c.documents))

	return builder.String()
}

func writeHistogram(builder *strings.Builder, name, labels string, hist *histogram) {
	sep := ""
	if labels != "" {
		sep = ","
	}
	for idx, bound := range hist.buckets {
		builder.WriteString(fmt.Sprintf("%s_bucket{%s%sle=%q} %d\n",
			name, labels, sep, formatFloat(bound), hist.counts[idx]))
	}
	builder.WriteString(fmt.Sprintf("%s_bucket{%s%sle=\"+Inf\"} %d\n", name, labels, sep, hist.count))
	if labels != "" {
		builder.WriteString(fmt.Sprintf("%s_sum{%s} %s\n", name, labels, formatFloat(hist.sum)))
		builder.WriteString(fmt.Sprintf("%s_count{%s} %d\n", name, labels, hist.count))
	} else {
		builder.WriteString(fmt.Sprintf("%s_sum %s\n", name, formatFloat(hist.sum)))
		builder.WriteString(fmt.Sprintf("%s_count %d\n", name, hist.count))
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
