package identity

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/models"
)

// maxRangeSize caps the expanded set so a typo like "1-10000000" cannot turn
// into a runaway batch.
const maxRangeSize = 10000

// ParseRangeExpr expands a textual set expression over ShortIDs into a sorted,
// de-duplicated slice. The expression is a comma-separated list of single
// numbers and inclusive ranges, e.g. "100-120,135,200-210".
func ParseRangeExpr(expr string) ([]models.ShortID, error) {
	seen := make(map[models.ShortID]bool)

	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "empty segment in range expression %q", expr)
		}

		lo, hi, err := parseSegment(part)
		if err != nil {
			return nil, err
		}

		if len(seen)+int(hi-lo)+1 > maxRangeSize {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "range expression expands past %d ids", maxRangeSize)
		}
		for id := lo; id <= hi; id++ {
			seen[id] = true
		}
	}

	if len(seen) == 0 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "range expression is empty")
	}

	ids := make([]models.ShortID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

// parseSegment parses one comma-separated element: "N" or "A-B" inclusive.
func parseSegment(part string) (models.ShortID, models.ShortID, error) {
	if i := strings.Index(part, "-"); i >= 0 {
		lo, err := parseBound(part[:i])
		if err != nil {
			return 0, 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid range segment %q", part)
		}
		hi, err := parseBound(part[i+1:])
		if err != nil {
			return 0, 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid range segment %q", part)
		}
		if hi < lo {
			return 0, 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "descending range segment %q", part)
		}
		return lo, hi, nil
	}

	id, err := parseBound(part)
	if err != nil {
		return 0, 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid short id %q in range expression", part)
	}
	return id, id, nil
}

func parseBound(s string) (models.ShortID, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, strconv.ErrRange
	}
	return models.ShortID(value), nil
}
