package httpx

import (
	"net/http"
	"strconv"

	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
)

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// ParseLimitOffset parses common pagination params and clamps to sane bounds.
// - defLimit: default limit when not specified
// - maxLimit: maximum allowed limit (values > maxLimit are clamped to maxLimit).
func ParseLimitOffset(r *http.Request, defLimit, maxLimit int) (int, int) {
	if maxLimit < 1 {
		maxLimit = 1
	}
	lim := min(max(parseIntQuery(r, "limit", defLimit), 1), maxLimit)
	off := max(parseIntQuery(r, "offset", 0), 0)
	return lim, off
}

// jobRefFromPath reads the {type} and {id} path values.
func jobRefFromPath(r *http.Request) (model.JobRef, error) {
	var ref model.JobRef
	if err := ref.Type.UnmarshalText([]byte(r.PathValue("type"))); err != nil {
		return ref, apperrors.ValidationField("job_type", err.Error())
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return ref, apperrors.ValidationField("job_id", "job id must be a positive integer")
	}
	ref.ID = id
	return ref, nil
}
