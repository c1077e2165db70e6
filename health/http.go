package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// Report is the JSON body served by Handler.
type Report struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckReport `json:"checks,omitempty"`
}

// CheckReport is the JSON form of one Result.
type CheckReport struct {
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Handler serves the aggregate health as JSON. Unhealthy answers 503;
// healthy and degraded answer 200. A "check" query parameter limits the
// report to one checker and answers 404 if it is unknown.
func Handler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var results map[string]Result
		if name := r.URL.Query().Get("check"); name != "" {
			result, err := agg.Check(r.Context(), name)
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
				return
			}
			results = map[string]Result{name: result}
		} else {
			results = agg.CheckAll(r.Context())
		}

		status := OverallStatus(results)
		report := Report{
			Status:    status.String(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    make(map[string]CheckReport, len(results)),
		}
		for name, result := range results {
			check := CheckReport{
				Status:   result.Status.String(),
				Message:  result.Message,
				Duration: result.Duration.String(),
				Details:  result.Details,
			}
			if result.Error != nil {
				check.Error = result.Error.Error()
			}
			report.Checks[name] = check
		}

		code := http.StatusOK
		if !status.Serving() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
